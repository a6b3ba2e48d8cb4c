package easyfix_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/easyfix"
	"github.com/roach88/easyfix/internal/testutil"
)

type client struct {
	fetches int

	Fetch func(ctx context.Context, id string) *easyfix.Promise[string]
}

func newClient() *client {
	c := &client{}
	c.Fetch = func(_ context.Context, id string) *easyfix.Promise[string] {
		c.fetches++
		return easyfix.Async(func() (string, error) {
			if id != "greeting" {
				return "", fmt.Errorf("unknown id %q", id)
			}
			return "hello", nil
		})
	}
	return c
}

func fetch(t *testing.T, c *client, id string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.Fetch(ctx, id).Await(ctx)
}

func TestCaptureThenReplayOnDisk(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(easyfix.EnvConfig, "")
	t.Setenv(easyfix.EnvMode, string(easyfix.ModeCapture))

	wrap := func(c *client) *easyfix.Handle {
		h, err := easyfix.WrapMethod(c, "Fetch", easyfix.Config{
			Directory: dir,
			Store:     easyfix.NewStore(easyfix.WithCache(easyfix.NewCache())),
		})
		require.NoError(t, err)
		t.Cleanup(h.Restore)
		return h
	}

	live := newClient()
	h := wrap(live)
	assert.Equal(t, easyfix.ModeCapture, h.Config().Mode)
	got, err := fetch(t, live, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	path := easyfix.FixturePath(dir, easyfix.DeriveKey(`["greeting"]`, "Fetch"))
	assert.Equal(t, path, h.FixturePath(context.Background(), "greeting"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	testutil.AssertGolden(t, "fetch_capture", data)

	t.Setenv(easyfix.EnvMode, string(easyfix.ModeReplay))
	replayed := newClient()
	wrap(replayed)
	got, err = fetch(t, replayed, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
	assert.Equal(t, 0, replayed.fetches)
}

func TestReplayMissOnDisk(t *testing.T) {
	t.Setenv(easyfix.EnvConfig, "")
	t.Setenv(easyfix.EnvMode, "")

	var failure error
	c := newClient()
	h, err := easyfix.WrapMethod(c, "Fetch", easyfix.Config{
		Directory: t.TempDir(),
		Store:     easyfix.NewStore(easyfix.WithCache(easyfix.NewCache())),
		OnFailure: func(err error) { failure = err },
	})
	require.NoError(t, err)
	defer h.Restore()

	p := c.Fetch(context.Background(), "farewell")
	assert.Nil(t, p, "a failed replay returns zero results")
	require.Error(t, failure)
	assert.True(t, easyfix.IsNotFound(failure))

	var fe *easyfix.Error
	require.ErrorAs(t, failure, &fe)
	assert.Equal(t, easyfix.ErrCodeNotFound, fe.Code)
	assert.Equal(t, h.FixturePath("farewell"), fe.Path)
}

func ExampleStringify() {
	obj := map[string]any{"val": 0}
	obj["circ"] = obj
	fmt.Println(easyfix.Stringify(obj, ""))
	// Output: {"circ":"[Circular ~]","val":0}
}

func ExampleDeriveKey() {
	fmt.Println(easyfix.DeriveKey(`[{"val":0},null]`, "IncStateNextTick"))
	// Output: IncStateNextTick-e1da8ae93c20
}
