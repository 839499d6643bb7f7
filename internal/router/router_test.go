package router

import (
	"context"
	"sync"
	"testing"
	"time"

	"cdi-map/internal/catalog"
	"cdi-map/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingActivator struct {
	mu    sync.Mutex
	begun []string
	ran   []string
}

func (a *recordingActivator) Begin(ctx context.Context, def catalog.RegionDefinition) func() error {
	a.mu.Lock()
	a.begun = append(a.begun, def.Slug)
	a.mu.Unlock()
	return func() error {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.ran = append(a.ran, def.Slug)
		return nil
	}
}

func (a *recordingActivator) calls() ([]string, []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.begun...), append([]string(nil), a.ran...)
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Parse([]byte(`[{"slug":"rome","name":"Rome"},{"slug":"milan"}]`))
	require.NoError(t, err)
	return c
}

func TestParseToken(t *testing.T) {
	cases := map[string]State{
		"":                    Landing(),
		"#/":                  Landing(),
		"/":                   Landing(),
		"#/unknown/path":      Landing(),
		"#/region/":           Landing(),
		"#/region/rome":       Region("rome"),
		"region/rome":         Region("rome"),
		"/region/rome":        Region("rome"),
		"#/city/milan":        Region("milan"),
		"#/region/san%20remo": Region("san remo"),
		"#/region/rome/extra": Region("rome"),
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseToken(in), in)
	}
}

func TestStateToken(t *testing.T) {
	assert.Equal(t, "#/", Landing().Token())
	assert.Equal(t, "#/region/rome", Region("rome").Token())
	assert.Equal(t, Region("san remo"), ParseToken(Region("san remo").Token()))
}

func TestInitialStateIsLanding(t *testing.T) {
	r := New(context.Background(), testCatalog(t), &recordingActivator{}, logger.Discard(), Options{})
	assert.Equal(t, Landing(), r.State())
	v := r.View()
	assert.True(t, v.LandingVisible)
	assert.False(t, v.RegionVisible)
	assert.Equal(t, DefaultTitle, v.Title)
}

func TestNavigateToRegionActivates(t *testing.T) {
	act := &recordingActivator{}
	var entered []string
	var mu sync.Mutex
	r := New(context.Background(), testCatalog(t), act, logger.Discard(), Options{
		OnEnter: func(ctx context.Context, def catalog.RegionDefinition) {
			mu.Lock()
			entered = append(entered, def.Slug)
			mu.Unlock()
		},
	})

	assert.Equal(t, Region("rome"), r.Navigate("#/region/rome"))
	r.Wait()

	v := r.View()
	assert.False(t, v.LandingVisible)
	assert.True(t, v.RegionVisible)
	assert.Equal(t, "Region • rome", v.Title)
	assert.Equal(t, "Rome", v.Subtitle)
	assert.Equal(t, "Rome", v.Breadcrumb)
	begun, ran := act.calls()
	assert.Equal(t, []string{"rome"}, begun)
	assert.Equal(t, []string{"rome"}, ran)
	mu.Lock()
	assert.Equal(t, []string{"rome"}, entered)
	mu.Unlock()
}

// signalActivator：加载函数运行时关闭 ran
type signalActivator struct{ ran chan struct{} }

func (a *signalActivator) Begin(ctx context.Context, def catalog.RegionDefinition) func() error {
	return func() error {
		close(a.ran)
		return nil
	}
}

func TestBlockingOnEnterDoesNotDelayLoad(t *testing.T) {
	act := &signalActivator{ran: make(chan struct{})}
	release := make(chan struct{})
	r := New(context.Background(), testCatalog(t), act, logger.Discard(), Options{
		OnEnter: func(ctx context.Context, def catalog.RegionDefinition) {
			select {
			case <-release:
			case <-ctx.Done():
			}
		},
	})

	r.Navigate("#/region/rome")
	select {
	case <-act.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("layer load waited on OnEnter")
	}
	close(release)
	r.Wait()
}

func TestOnEnterIsBoundedByTimeout(t *testing.T) {
	errs := make(chan error, 1)
	r := New(context.Background(), testCatalog(t), &recordingActivator{}, logger.Discard(), Options{
		OnEnterTimeout: 20 * time.Millisecond,
		OnEnter: func(ctx context.Context, def catalog.RegionDefinition) {
			<-ctx.Done()
			errs <- ctx.Err()
		},
	})

	r.Navigate("#/region/rome")
	r.Wait()
	assert.ErrorIs(t, <-errs, context.DeadlineExceeded)
}

func TestNavigateSameTargetIsNoop(t *testing.T) {
	act := &recordingActivator{}
	r := New(context.Background(), testCatalog(t), act, logger.Discard(), Options{})
	r.Navigate("#/region/rome")
	r.Navigate("region/rome")
	r.Navigate("#/city/rome")
	r.Wait()
	begun, _ := act.calls()
	assert.Equal(t, []string{"rome"}, begun)

	r.Navigate("#/")
	r.Navigate("/")
	assert.Equal(t, Landing(), r.State())
}

func TestUnknownRegionFallsBackToLanding(t *testing.T) {
	act := &recordingActivator{}
	r := New(context.Background(), testCatalog(t), act, logger.Discard(), Options{Title: "CDI"})

	assert.Equal(t, Landing(), r.Navigate("#/region/atlantis"))
	r.Navigate("#/region/rome")
	assert.Equal(t, Landing(), r.Navigate("#/region/atlantis"))
	r.Wait()

	v := r.View()
	assert.True(t, v.LandingVisible)
	assert.False(t, v.RegionVisible)
	assert.Equal(t, "CDI", v.Title)
	assert.Empty(t, v.Subtitle)
	begun, _ := act.calls()
	assert.Equal(t, []string{"rome"}, begun)
}

func TestActivationsBeginInNavigationOrder(t *testing.T) {
	act := &recordingActivator{}
	r := New(context.Background(), testCatalog(t), act, logger.Discard(), Options{})
	r.Navigate("#/region/rome")
	r.Navigate("#/")
	r.Navigate("#/region/milan")
	r.Navigate("#/region/rome")
	r.Wait()

	begun, ran := act.calls()
	assert.Equal(t, []string{"rome", "milan", "rome"}, begun, "activations begin in navigation order")
	assert.ElementsMatch(t, []string{"rome", "milan", "rome"}, ran)
}

func TestEmptyCatalogAlwaysLanding(t *testing.T) {
	r := New(context.Background(), nil, &recordingActivator{}, logger.Discard(), Options{})
	assert.Equal(t, Landing(), r.Navigate("#/region/rome"))
	assert.Equal(t, 0, r.Catalog().Len())
}
