package catalogrpc

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"comicshelf/internal/comics"
	"comicshelf/internal/events"
	"comicshelf/pkg/database"
	"comicshelf/pkg/models"
)

type recorder struct{ events []any }

func (r *recorder) BroadcastJSON(v any) { r.events = append(r.events, v) }

func setup(t *testing.T) (*Client, *comics.Store, *recorder) {
	t.Helper()
	db, err := database.OpenAndMigrate(database.Config{Path: filepath.Join(t.TempDir(), "comics.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := comics.NewStore(db)
	rec := &recorder{}

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterCatalogServer(srv, NewServer(store, rec, nil))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewClient(conn), store, rec
}

func seed(t *testing.T, store *comics.Store, cs ...models.Comic) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.WithTx(ctx, func(tx *comics.Tx) error {
		for i := range cs {
			if err := tx.Insert(ctx, &cs[i]); err != nil {
				return err
			}
		}
		return nil
	}))
}

func TestListComics(t *testing.T) {
	client, store, _ := setup(t)
	seed(t, store,
		models.Comic{Series: "Batman", IssueNumber: "1", SeriesStartYear: 1940, Storyline: "Origins"},
		models.Comic{Series: "Batman", IssueNumber: "2", SeriesStartYear: 1940},
	)

	resp, err := client.ListComics(context.Background(), &ListComicsRequest{Sort: "storyline"})
	require.NoError(t, err)
	assert.Equal(t, "storyline", resp.Sort)
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Groups, 2)
	assert.Equal(t, "Origins", resp.Groups[0].Label)
	assert.Equal(t, "Ungrouped", resp.Groups[1].Label)

	resp, err = client.ListComics(context.Background(), &ListComicsRequest{Sort: "nonsense"})
	require.NoError(t, err)
	assert.Equal(t, "storyline", resp.Sort)
}

func TestGetComic(t *testing.T) {
	client, store, _ := setup(t)
	seed(t, store, models.Comic{Series: "Batman", IssueNumber: "1", SeriesStartYear: 1940, IssueTitle: "The Bat-Man"})

	resp, err := client.GetComic(context.Background(), &GetComicRequest{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, "The Bat-Man", resp.Comic.IssueTitle)

	_, err = client.GetComic(context.Background(), &GetComicRequest{ID: 2})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.GetComic(context.Background(), &GetComicRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestToggleStatus(t *testing.T) {
	client, store, rec := setup(t)
	seed(t, store, models.Comic{Series: "Batman", IssueNumber: "1", SeriesStartYear: 1940})

	resp, err := client.ToggleStatus(context.Background(), &ToggleStatusRequest{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRead, resp.Comic.Status)

	require.Len(t, rec.events, 1)
	ev, ok := rec.events[0].(events.ComicStatus)
	require.True(t, ok)
	assert.Equal(t, events.TypeComicStatus, ev.Type)
	assert.Equal(t, int64(1), ev.ComicID)
	assert.Equal(t, "Read", ev.Status)

	resp, err = client.ToggleStatus(context.Background(), &ToggleStatusRequest{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnread, resp.Comic.Status)
}

func TestToggleStatusErrors(t *testing.T) {
	client, _, rec := setup(t)

	_, err := client.ToggleStatus(context.Background(), &ToggleStatusRequest{ID: 42})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.ToggleStatus(context.Background(), &ToggleStatusRequest{ID: -1})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Empty(t, rec.events)
}
