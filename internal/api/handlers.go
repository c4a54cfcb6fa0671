package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		ID:        s.engine.ID(),
		Neighbors: nonNil(s.engine.Neighbors()),
		Incoming:  nonNil(s.engine.Incoming()),
	})
}

func (s *Server) neighbors(c *gin.Context) {
	c.JSON(http.StatusOK, NeighborsResponse{Neighbors: nonNil(s.engine.Neighbors())})
}

func (s *Server) routeTable(c *gin.Context) {
	c.JSON(http.StatusOK, RoutesResponse{Routes: s.engine.Routes()})
}

func (s *Server) transfers(c *gin.Context) {
	entries := s.engine.Transfers()
	out := make([]Transfer, 0, len(entries))
	for _, e := range entries {
		out = append(out, Transfer{
			Destination: e.Destination,
			FileName:    e.FileName,
			SendTime:    e.SendTime,
			Unacked:     e.Unacked,
		})
	}
	c.JSON(http.StatusOK, TransfersResponse{Transfers: out})
}

func (s *Server) files(c *gin.Context) {
	names, err := s.engine.LocalFiles()
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, FilesResponse{Files: nonNil(names)})
}

func (s *Server) join(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	id, err := s.engine.Join(c.Request.Context(), req.Addr)
	if err != nil {
		abort(c, statusOf(err), err)
		return
	}
	c.JSON(http.StatusOK, JoinResponse{ID: id})
}

func (s *Server) send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.SendFile(c.Request.Context(), req.Destination, req.File); err != nil {
		abort(c, statusOf(err), err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) request(c *gin.Context) {
	var req FileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.Request(req.File); err != nil {
		abort(c, statusOf(err), err)
		return
	}
	c.Status(http.StatusAccepted)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
