package catalogrpc

import (
	"context"

	"google.golang.org/grpc"
)

// Client calls the catalog service over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) ListComics(ctx context.Context, req *ListComicsRequest, opts ...grpc.CallOption) (*ListComicsResponse, error) {
	out := new(ListComicsResponse)
	if err := c.invoke(ctx, methodListComics, req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetComic(ctx context.Context, req *GetComicRequest, opts ...grpc.CallOption) (*GetComicResponse, error) {
	out := new(GetComicResponse)
	if err := c.invoke(ctx, methodGetComic, req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ToggleStatus(ctx context.Context, req *ToggleStatusRequest, opts ...grpc.CallOption) (*ToggleStatusResponse, error) {
	out := new(ToggleStatusResponse)
	if err := c.invoke(ctx, methodToggleStatus, req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) invoke(ctx context.Context, method string, req, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, req, out, opts...)
}
