package admin

import "time"

// PackageView is the JSON form of a managed package.
type PackageView struct {
	Ident    string    `json:"ident"`
	Filename string    `json:"filename"`
	Size     uint32    `json:"size"`
	Status   string    `json:"status"`
	Done     int       `json:"done"`
	Total    int       `json:"total"`
	Root     string    `json:"root,omitempty"`
	AddedAt  time.Time `json:"added_at"`
}

type HashesResponse struct {
	Ident  string   `json:"ident"`
	Kind   string   `json:"kind"`
	Hashes []string `json:"hashes"`
}

type ChunksResponse struct {
	Ident  string   `json:"ident"`
	Hash   string   `json:"hash"`
	Chunks []string `json:"chunks"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Packages int    `json:"packages"`
	Time     string `json:"time"`
}
