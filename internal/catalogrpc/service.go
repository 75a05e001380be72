package catalogrpc

import (
	"context"

	"google.golang.org/grpc"

	"comicshelf/internal/comics"
	"comicshelf/pkg/models"
)

const ServiceName = "comicshelf.catalog.v1.Catalog"

const (
	methodListComics   = "/" + ServiceName + "/ListComics"
	methodGetComic     = "/" + ServiceName + "/GetComic"
	methodToggleStatus = "/" + ServiceName + "/ToggleStatus"
)

type ListComicsRequest struct {
	Sort string `json:"sort"`
}

type ListComicsResponse struct {
	Sort   string         `json:"sort"`
	Total  int            `json:"total"`
	Groups []comics.Group `json:"groups"`
}

type GetComicRequest struct {
	ID int64 `json:"id"`
}

type GetComicResponse struct {
	Comic models.Comic `json:"comic"`
}

type ToggleStatusRequest struct {
	ID int64 `json:"id"`
}

type ToggleStatusResponse struct {
	Comic models.Comic `json:"comic"`
}

// CatalogServer is the server side of the catalog service.
type CatalogServer interface {
	ListComics(context.Context, *ListComicsRequest) (*ListComicsResponse, error)
	GetComic(context.Context, *GetComicRequest) (*GetComicResponse, error)
	ToggleStatus(context.Context, *ToggleStatusRequest) (*ToggleStatusResponse, error)
}

func RegisterCatalogServer(s grpc.ServiceRegistrar, srv CatalogServer) {
	s.RegisterService(&serviceDesc, srv)
}

// unary adapts a typed method to a grpc.MethodDesc handler.
func unary[Req, Resp any](fullMethod string, call func(CatalogServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CatalogServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CatalogServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListComics",
			Handler:    unary(methodListComics, CatalogServer.ListComics),
		},
		{
			MethodName: "GetComic",
			Handler:    unary(methodGetComic, CatalogServer.GetComic),
		},
		{
			MethodName: "ToggleStatus",
			Handler:    unary(methodToggleStatus, CatalogServer.ToggleStatus),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "comicshelf/catalog/v1",
}
