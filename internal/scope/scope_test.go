package scope

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m25mathews/rainger-poc/internal/metrics"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		scope   Scope
		wantErr error
	}{
		{name: "sales order", scope: Scope{Kind: KindSalesOrder, OrganizationIDs: []string{"1", "2"}, States: []string{"OH", "WA"}}},
		{name: "sales order mismatch", scope: Scope{Kind: KindSalesOrder, OrganizationIDs: []string{"1", "2"}, States: []string{"OH"}}, wantErr: ErrMismatchedKeys},
		{name: "sold to mismatch", scope: Scope{Kind: KindSoldTo, OrganizationIDs: []string{"1"}, Zip3s: []string{"430", "431"}}, wantErr: ErrMismatchedKeys},
		{name: "firmographic", scope: Scope{Kind: KindFirmographic, States: []string{"OH"}, Zip3s: []string{"430"}}},
		{name: "keepstock", scope: Scope{Kind: KindKeepstock, Accounts: []string{"A1", "A2"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.scope.Validate()
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}

	assert.Error(t, Scope{Kind: "nope"}.Validate())
}

func TestNewAndKeys(t *testing.T) {
	keys := []Key{{OrganizationID: "1", State: "OH"}, {OrganizationID: "2", State: "WA"}}
	s, err := New(KindSalesOrder, keys, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, s.OrganizationIDs)
	assert.Equal(t, []string{"OH", "WA"}, s.States)
	assert.Nil(t, s.Zip3s)
	assert.True(t, s.Incremental)
	assert.Equal(t, keys, s.Keys())
	assert.Equal(t, "salesorder[2 keys]", s.String())

	one, err := New(KindSoldTo, []Key{{OrganizationID: "1", Zip3: "430"}}, false)
	require.NoError(t, err)
	assert.Equal(t, "soldto[1/430]", one.String())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" SalesOrder ")
	require.NoError(t, err)
	assert.Equal(t, KindSalesOrder, k)

	_, err = ParseKind("dnb")
	assert.Error(t, err)
}

func sized(size int64, org string) Sized {
	return Sized{Key: Key{OrganizationID: org, State: "OH"}, Size: size}
}

func TestPlan(t *testing.T) {
	groups := []Group{
		{Name: "large", MinSize: 100, ChunkSize: 1, Parallel: 1},
		{Name: "small", MinSize: -1, ChunkSize: 2, Parallel: 2},
	}
	sizes := []Sized{sized(5, "a"), sized(500, "b"), sized(7, "c"), sized(3, "d"), sized(100, "e"), sized(6, "f")}

	files, err := Plan(KindSalesOrder, sizes, groups, false, 0)
	require.NoError(t, err)
	require.Len(t, files, 3)

	// small: e(100) c(7) f(6) a(5) d(3) dealt round robin to two processes
	assert.Equal(t, "small", files[0].Group)
	assert.Equal(t, 0, files[0].PID)
	require.Len(t, files[0].Scopes, 2)
	assert.Equal(t, []string{"e", "f"}, files[0].Scopes[0].OrganizationIDs)
	assert.Equal(t, []string{"d"}, files[0].Scopes[1].OrganizationIDs)

	assert.Equal(t, 1, files[1].PID)
	require.Len(t, files[1].Scopes, 1)
	assert.Equal(t, []string{"c", "a"}, files[1].Scopes[0].OrganizationIDs)

	assert.Equal(t, "large", files[2].Group)
	require.Len(t, files[2].Scopes, 1)
	assert.Equal(t, []string{"b"}, files[2].Scopes[0].OrganizationIDs)
}

func TestPlanMaxScopesAndEmptyProcesses(t *testing.T) {
	groups := []Group{{Name: "only", MinSize: 0, ChunkSize: 10, Parallel: 3}}
	sizes := []Sized{sized(1, "a"), sized(2, "b"), sized(3, "c"), sized(0, "dropped")}

	files, err := Plan(KindSalesOrder, sizes, groups, false, 2)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, []string{"c"}, files[0].Scopes[0].OrganizationIDs)
	assert.Equal(t, []string{"b"}, files[1].Scopes[0].OrganizationIDs)
	assert.Empty(t, files[2].Scopes)
}

func TestGroupPresets(t *testing.T) {
	cfg := DefaultGroupConfig()

	full := SalesOrderGroups(cfg, false)
	require.Len(t, full, 4)
	assert.Equal(t, Group{Name: "huge", MinSize: 30000, ChunkSize: 1, Parallel: 1}, full[3])
	assert.Equal(t, 16000, full[0].ChunkSize)

	assert.Len(t, SalesOrderGroups(cfg, true), 3)
	assert.Equal(t, 3000, SoldToGroup(cfg).ChunkSize)
	assert.Equal(t, 100, KeepstockGroup(cfg).ChunkSize)
	assert.Equal(t, int64(1_500_000_000), FirmographicGroups(cfg)[3].MinSize)

	assert.Equal(t, 100, RankChunks(KindSalesOrder, "large"))
	assert.Equal(t, 1, RankChunks(KindSalesOrder, "small"))
	assert.Equal(t, 10, RankChunks(KindFirmographic, "HG"))
	assert.Equal(t, 10, RankChunks(KindSoldTo, ""))
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()

	assert.Equal(t, filepath.Join(dir, "salesorder_scopes_small_1.json"), FileName(dir, KindSalesOrder, "small", 1))
	assert.Equal(t, filepath.Join(dir, "soldto_scopes_0.json"), FileName(dir, KindSoldTo, "", 0))
	assert.Equal(t, filepath.Join(dir, "keepstock_scopes.json"), FileName(dir, KindKeepstock, "", -1))

	files, err := Plan(KindSoldTo, []Sized{
		{Key: Key{OrganizationID: "1", Zip3: "430"}, Size: 3},
		{Key: Key{OrganizationID: "2", Zip3: "981"}, Size: 2},
	}, []Group{SoldToGroup(DefaultGroupConfig())}, true, 0)
	require.NoError(t, err)
	require.NoError(t, Write(dir, files))

	scopes, err := Load(dir, KindSoldTo, "", 0)
	require.NoError(t, err)
	require.Len(t, scopes, 1)
	assert.Equal(t, []string{"430", "981"}, scopes[0].Zip3s)
	assert.True(t, scopes[0].Incremental)

	listing, err := List(dir)
	require.NoError(t, err)
	assert.Equal(t, []Listing{{Name: "soldto_scopes_0.json", Scopes: 1, Keys: 2}}, listing)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o644))
	require.NoError(t, Clear(dir, KindSalesOrder))
	_, err = Load(dir, KindSoldTo, "", 0)
	require.NoError(t, err)

	require.NoError(t, Clear(dir, ""))
	_, err = Load(dir, KindSoldTo, "", 0)
	assert.Error(t, err)
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
}

func TestLoadRejectsMismatchedKeys(t *testing.T) {
	dir := t.TempDir()
	path := FileName(dir, KindSalesOrder, "small", 0)
	require.NoError(t, os.WriteFile(path, []byte(`[{"kind":"salesorder","organization_ids":["1"],"states":[]}]`), 0o644))

	_, err := Load(dir, KindSalesOrder, "small", 0)
	assert.True(t, errors.Is(err, ErrMismatchedKeys))
}

func TestRunner(t *testing.T) {
	scopes := make([]Scope, 6)
	for i := range scopes {
		scopes[i] = Scope{Kind: KindSalesOrder, OrganizationIDs: []string{string(rune('a' + i))}, States: []string{"OH"}}
	}

	m := metrics.New(nil)
	var running, peak, calls atomic.Int32
	report := NewRunner(2, m).Run(context.Background(), "small", scopes, func(_ context.Context, s Scope) error {
		calls.Add(1)
		n := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		switch s.OrganizationIDs[0] {
		case "b":
			return errors.New("boom")
		case "d":
			panic("bad row")
		}
		return nil
	})

	assert.Equal(t, int32(6), calls.Load())
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, 6, report.Total)
	assert.Equal(t, 4, report.Processed)
	require.Len(t, report.Failures, 2)
	assert.Error(t, report.Err())
	assert.Equal(t, float64(4), testutil.ToFloat64(m.ScopesProcessed.WithLabelValues("salesorder", "small")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ScopesFailed.WithLabelValues("salesorder", "small")))
}

func TestRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scopes := []Scope{{Kind: KindKeepstock, Accounts: []string{"A"}}}
	report := NewRunner(1, nil).Run(ctx, "", scopes, func(context.Context, Scope) error {
		t.Fatal("must not run")
		return nil
	})
	assert.Equal(t, 0, report.Processed)
	assert.Len(t, report.Failures, 1)
	assert.NoError(t, (&Report{}).Err())
}
