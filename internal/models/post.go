package models

// PostResult identifies a published post on the social network.
type PostResult struct {
	PostID  string `json:"postId"`
	PostURL string `json:"postUrl"`
}
