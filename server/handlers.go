package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/lhecker/semd/buffer"
	"github.com/lhecker/semd/semaphore"
	"github.com/lhecker/semd/usermem"
	"github.com/lhecker/semd/xorcipher"
)

type createRequest struct {
	Value int `json:"value"`
}

type createResponse struct {
	Handle semaphore.Handle `json:"handle"`
}

type produceRequest struct {
	Item int32 `json:"item"`
}

type consumeResponse struct {
	Item int32 `json:"item"`
}

type ticketsMessage struct {
	PID     int `json:"pid"`
	Tickets int `json:"tickets"`
}

type totalResponse struct {
	Total int `json:"total"`
}

// semaphoreError writes the response for a failed semaphore operation.
// Every failure carries the -1 code of the system call interface.
func (s *Server) semaphoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, semaphore.ErrInvalidHandle):
		s.writeError(w, http.StatusNotFound, -1, err)
	case errors.Is(err, semaphore.ErrExhausted):
		s.writeError(w, http.StatusServiceUnavailable, -1, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// The client is most likely gone already.
		s.writeError(w, http.StatusRequestTimeout, -1, err)
	default:
		s.logger.Error("semaphore operation failed", zap.String("path", r.URL.Path), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, -1, err)
	}
}

func handleVar(r *http.Request) (semaphore.Handle, error) {
	h, err := pathInt(r, "handle")
	if err != nil {
		return semaphore.InvalidHandle, semaphore.ErrInvalidHandle
	}
	return semaphore.Handle(h), nil
}

func (s *Server) createSemaphore(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, -1, errBadRequest)
		return
	}

	h, err := s.sems.Create(req.Value)
	if err != nil {
		s.semaphoreError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, createResponse{Handle: h})
}

func (s *Server) listSemaphores(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.table.Snapshot())
}

func (s *Server) waitSemaphore(w http.ResponseWriter, r *http.Request) {
	h, err := handleVar(r)
	if err == nil {
		err = s.sems.Wait(r.Context(), h)
	}
	if err == nil && r.Context().Err() != nil {
		// The grant cannot be delivered anymore. Hand the unit back so that
		// a cancelled wait never consumes one.
		if serr := s.sems.Signal(h); serr != nil {
			s.logger.Warn("failed to return unit of abandoned wait", zap.Int("handle", int(h)), zap.Error(serr))
		}
		err = r.Context().Err()
	}
	if err != nil {
		s.semaphoreError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) signalSemaphore(w http.ResponseWriter, r *http.Request) {
	h, err := handleVar(r)
	if err == nil {
		err = s.sems.Signal(h)
	}
	if err != nil {
		s.semaphoreError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) destroySemaphore(w http.ResponseWriter, r *http.Request) {
	h, err := handleVar(r)
	if err == nil {
		err = s.sems.Destroy(h)
	}
	if err != nil {
		s.semaphoreError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) bufferError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, buffer.ErrNotInitialized):
		s.writeError(w, http.StatusPreconditionFailed, -2, err)
	default:
		s.writeError(w, http.StatusConflict, -1, err)
	}
}

func (s *Server) initBuffer(w http.ResponseWriter, r *http.Request) {
	s.buffer.Init()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) bufferStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.buffer.Status())
}

func (s *Server) produce(w http.ResponseWriter, r *http.Request) {
	var req produceRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, -1, errBadRequest)
		return
	}

	if err := s.buffer.Produce(req.Item); err != nil {
		s.bufferError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) consume(w http.ResponseWriter, r *http.Request) {
	item, err := s.buffer.Consume()
	if err != nil {
		s.bufferError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, consumeResponse{Item: item})
}

// cipher transforms the request body. The body is staged in its own address
// space so it goes through the same chunked transfer as the system call.
func (s *Server) cipher(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, xorcipher.MaxLength+1))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, -1, errBadRequest)
		return
	}

	mem := usermem.NewSpace(len(body))
	if err := mem.CopyOut(0, body); err != nil {
		s.writeError(w, http.StatusInternalServerError, -1, err)
		return
	}

	if _, err := xorcipher.Transform(mem, 0, len(body), s.key); err != nil {
		s.writeError(w, http.StatusBadRequest, -1, err)
		return
	}

	if err := mem.CopyIn(body, 0); err != nil {
		s.writeError(w, http.StatusInternalServerError, -1, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := w.Write(body); err != nil {
		s.writeFailed(err)
	}
}

func (s *Server) setTickets(w http.ResponseWriter, r *http.Request) {
	pid, err := pathInt(r, "pid")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, -1, err)
		return
	}

	var req ticketsMessage
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, -1, errBadRequest)
		return
	}

	n := s.tickets.Set(pid, req.Tickets)
	s.writeJSON(w, http.StatusOK, ticketsMessage{PID: pid, Tickets: n})
}

func (s *Server) getTickets(w http.ResponseWriter, r *http.Request) {
	pid, err := pathInt(r, "pid")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, -1, err)
		return
	}

	s.writeJSON(w, http.StatusOK, ticketsMessage{PID: pid, Tickets: s.tickets.Get(pid)})
}

// removeTickets forgets pid, like process exit does.
func (s *Server) removeTickets(w http.ResponseWriter, r *http.Request) {
	pid, err := pathInt(r, "pid")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, -1, err)
		return
	}

	s.tickets.Remove(pid)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) totalTickets(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, totalResponse{Total: s.tickets.Total()})
}
