package catalogrpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"comicshelf/internal/comics"
	"comicshelf/internal/events"
	"comicshelf/internal/logging"
)

// Publisher receives status toggles.
type Publisher interface {
	BroadcastJSON(v any)
}

type Server struct {
	Store     *comics.Store
	Publisher Publisher
	logger    *slog.Logger
}

func NewServer(store *comics.Store, publisher Publisher, logger *slog.Logger) *Server {
	return &Server{
		Store:     store,
		Publisher: publisher,
		logger:    logging.OrDiscard(logger).With(slog.String("component", "catalogrpc")),
	}
}

func (s *Server) ListComics(ctx context.Context, req *ListComicsRequest) (*ListComicsResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	sort := comics.NormalizeSort(req.Sort)
	groups, err := s.Store.ListSorted(ctx, sort)
	if err != nil {
		s.logger.Error("list comics", slog.Any("error", err))
		return nil, status.Error(codes.Internal, "list failed")
	}

	resp := &ListComicsResponse{Sort: sort, Groups: groups}
	for _, g := range groups {
		resp.Total += len(g.Comics)
	}
	return resp, nil
}

func (s *Server) GetComic(ctx context.Context, req *GetComicRequest) (*GetComicResponse, error) {
	if req == nil || req.ID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	c, err := s.Store.Get(ctx, req.ID)
	if err != nil {
		s.logger.Error("get comic", slog.Int64("comic_id", req.ID), slog.Any("error", err))
		return nil, status.Error(codes.Internal, "get failed")
	}
	if c == nil {
		return nil, status.Error(codes.NotFound, "comic not found")
	}
	return &GetComicResponse{Comic: *c}, nil
}

func (s *Server) ToggleStatus(ctx context.Context, req *ToggleStatusRequest) (*ToggleStatusResponse, error) {
	if req == nil || req.ID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	c, err := s.Store.ToggleStatus(ctx, req.ID)
	if errors.Is(err, comics.ErrNotFound) {
		return nil, status.Error(codes.NotFound, "comic not found")
	}
	if errors.Is(err, comics.ErrBusy) {
		return nil, status.Error(codes.Unavailable, "collection busy")
	}
	if err != nil {
		s.logger.Error("toggle status", slog.Int64("comic_id", req.ID), slog.Any("error", err))
		return nil, status.Error(codes.Internal, "toggle failed")
	}

	if s.Publisher != nil {
		s.Publisher.BroadcastJSON(events.ComicStatus{
			Type:        events.TypeComicStatus,
			ComicID:     c.ID,
			Series:      c.Series,
			IssueNumber: c.IssueNumber,
			Status:      string(c.Status),
			At:          time.Now().UTC(),
		})
	}
	return &ToggleStatusResponse{Comic: *c}, nil
}
