package api

import "time"

type JoinRequest struct {
	Addr string `json:"addr" binding:"required"`
}

type JoinResponse struct {
	ID string `json:"id"`
}

type SendRequest struct {
	Destination string `json:"destination" binding:"required"`
	File        string `json:"file" binding:"required"`
}

type FileRequest struct {
	File string `json:"file" binding:"required"`
}

type StatusResponse struct {
	ID        string   `json:"id"`
	Neighbors []string `json:"neighbors"`
	Incoming  []string `json:"incoming"`
}

type NeighborsResponse struct {
	Neighbors []string `json:"neighbors"`
}

type RoutesResponse struct {
	// destination -> next hop
	Routes map[string]string `json:"routes"`
}

type Transfer struct {
	Destination string    `json:"destination"`
	FileName    string    `json:"file_name"`
	SendTime    time.Time `json:"send_time"`
	Unacked     []uint32  `json:"unacked"`
}

type TransfersResponse struct {
	Transfers []Transfer `json:"transfers"`
}

type FilesResponse struct {
	Files []string `json:"files"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
