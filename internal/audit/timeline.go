package audit

import "time"

// TimelineFilters narrows the admin log timeline. Zero values mean no bound.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	AdminID  int64
	Action   string
	Page     int
	PageSize int
}

// Entry is one admin log row joined with the acting admin's email.
type Entry struct {
	ID         int64     `json:"id"`
	AdminID    int64     `json:"adminId"`
	AdminEmail string    `json:"adminEmail"`
	Action     string    `json:"action"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PagingInfo is window-style paging: the total is not counted.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasNext  bool `json:"hasNext"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// Result is one page of the timeline.
type Result struct {
	Entries []Entry    `json:"entries"`
	Paging  PagingInfo `json:"paging"`
}
