package domain

// Task references an asynchronous write accepted by the search index.
type Task struct {
	UID    int64  `json:"taskUid"`
	Status string `json:"status"`
}

// DocumentPage is one page of an index snapshot.
type DocumentPage struct {
	Results []Post
	Total   int64
	// Bytes is the size of the encoded page as received.
	Bytes int
}
