package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octool/octool/internal/domain"
)

func buildCatalog(records map[string][]domain.BuildRecord) *domain.VersionCatalog {
	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	return domain.NewVersionCatalog(domain.CatalogBuild, names, records)
}

func openCoreCatalog() *domain.VersionCatalog {
	return buildCatalog(map[string][]domain.BuildRecord{
		"OpenCorePkg": {
			{Channel: "release", Version: "0.9.2", PublishTime: 10},
			{Channel: "release", Version: "0.9.3", PublishTime: 20},
			{Channel: "debug", Version: "0.9.3-DEBUG", PublishTime: 20},
		},
	})
}

func TestResolvePicksLatestOnChannel(t *testing.T) {
	resolved, err := Resolve("OpenCorePkg", "release", openCoreCatalog())
	require.NoError(t, err)

	assert.Equal(t, "0.9.3", resolved.Version())
	assert.Equal(t, "release", resolved.Record.Channel)
	assert.Equal(t, "OpenCorePkg", resolved.Component)
}

func TestResolveDebugChannel(t *testing.T) {
	resolved, err := Resolve("OpenCorePkg", "debug", openCoreCatalog())
	require.NoError(t, err)
	assert.Equal(t, "0.9.3-DEBUG", resolved.Version())
}

func TestResolveNoFuzzyChannel(t *testing.T) {
	for _, channel := range []string{"Release", "rel", "release ", "nightly"} {
		_, err := Resolve("OpenCorePkg", channel, openCoreCatalog())
		assert.ErrorIs(t, err, domain.ErrNoMatchingChannel, channel)
	}
}

func TestResolveUnknownComponent(t *testing.T) {
	_, err := Resolve("Lilu", "release", openCoreCatalog())
	assert.ErrorIs(t, err, domain.ErrNoMatchingChannel)

	_, err = Resolve("Lilu", "release", nil)
	assert.ErrorIs(t, err, domain.ErrNoMatchingChannel)
}

func TestResolveNeverCrossesChannel(t *testing.T) {
	cat := buildCatalog(map[string][]domain.BuildRecord{
		"Lilu": {
			{Channel: "debug", Version: "1.6.8", PublishTime: 99},
			{Channel: "release", Version: "1.6.7", PublishTime: 1},
			{Channel: "debug", Version: "1.6.9", PublishTime: 100},
		},
	})

	for _, channel := range []string{"release", "debug"} {
		resolved, err := Resolve("Lilu", channel, cat)
		require.NoError(t, err)
		assert.Equal(t, channel, resolved.Record.Channel)
	}
}

func TestResolveTieBreaksOnVersion(t *testing.T) {
	cat := buildCatalog(map[string][]domain.BuildRecord{
		"WhateverGreen": {
			{Channel: "release", Version: "1.6.10", PublishTime: 50},
			{Channel: "release", Version: "1.6.9", PublishTime: 50},
			{Channel: "release", Version: "1.6.2", PublishTime: 50},
		},
	})

	resolved, err := Resolve("WhateverGreen", "release", cat)
	require.NoError(t, err)
	assert.Equal(t, "1.6.10", resolved.Version())
}

func TestResolveIdenticalDuplicatesAreNotAmbiguous(t *testing.T) {
	rec := domain.BuildRecord{Channel: "release", Version: "1.0.0", Commit: "abc1234", PublishTime: 5}
	cat := buildCatalog(map[string][]domain.BuildRecord{"AppleALC": {rec, rec}})

	resolved, err := Resolve("AppleALC", "release", cat)
	require.NoError(t, err)
	assert.Equal(t, rec, resolved.Record)
}

func TestResolveAmbiguousLatest(t *testing.T) {
	cat := buildCatalog(map[string][]domain.BuildRecord{
		"AppleALC": {
			{Channel: "release", Version: "1.0.0", Commit: "aaaaaaa", PublishTime: 5},
			{Channel: "release", Version: "1.0.0", Commit: "bbbbbbb", PublishTime: 5},
		},
	})

	_, err := Resolve("AppleALC", "release", cat)
	assert.ErrorIs(t, err, domain.ErrAmbiguousLatest)
}

func TestResolverAttachesVendorMetadata(t *testing.T) {
	vendor := domain.NewVersionCatalog(domain.CatalogVendor, []string{"OpenCorePkg"}, map[string][]domain.BuildRecord{
		"OpenCorePkg": {
			{Channel: "release", Version: "0.9.2", URL: "https://example.com/0.9.2.zip"},
			{Channel: "release", Version: "0.9.3", URL: "https://example.com/0.9.3.zip"},
		},
	})

	r := NewResolver(openCoreCatalog(), vendor)
	resolved, err := r.Resolve("OpenCorePkg", "release")
	require.NoError(t, err)
	require.NotNil(t, resolved.Vendor)
	assert.Equal(t, "https://example.com/0.9.3.zip", resolved.Vendor.URL)
	assert.False(t, r.Stale())
}

func TestResolverVendorNeverOverridesBuild(t *testing.T) {
	vendor := domain.NewVersionCatalog(domain.CatalogVendor, []string{"OpenCorePkg"}, map[string][]domain.BuildRecord{
		"OpenCorePkg": {{Channel: "release", Version: "1.0.0", PublishTime: 999}},
		"Lilu":        {{Channel: "release", Version: "1.6.7", PublishTime: 1}},
	})

	r := NewResolver(openCoreCatalog(), vendor)
	resolved, err := r.Resolve("OpenCorePkg", "release")
	require.NoError(t, err)
	assert.Equal(t, "0.9.3", resolved.Version())
	assert.Nil(t, resolved.Vendor)

	_, err = r.Resolve("Lilu", "release")
	assert.ErrorIs(t, err, domain.ErrNoMatchingChannel)
}

func TestReconcile(t *testing.T) {
	const head = "4f2c8d9e1a7b3c5d6e8f0a1b2c3d4e5f6a7b8c9d"

	commit := func(c string) domain.ResolvedVersion {
		return domain.ResolvedVersion{Record: domain.BuildRecord{Channel: "release", Version: "0.9.3", Commit: c}}
	}
	tagged := domain.ResolvedVersion{Record: domain.BuildRecord{Channel: "release", Version: "0.9.3"}}

	tests := []struct {
		name     string
		local    domain.LocalRepository
		resolved domain.ResolvedVersion
		want     bool
	}{
		{"not cloned", domain.LocalRepository{}, commit(head), true},
		{"same commit", domain.LocalRepository{Head: head}, commit(head), false},
		{"upper case commit", domain.LocalRepository{Head: head}, commit("4F2C8D9E1A7B3C5D6E8F0A1B2C3D4E5F6A7B8C9D"), false},
		{"abbreviated commit", domain.LocalRepository{Head: head}, commit("4f2c8d9"), false},
		{"too short prefix", domain.LocalRepository{Head: head}, commit("4f2c"), true},
		{"other commit", domain.LocalRepository{Head: head}, commit("0000000000000000000000000000000000000000"), true},
		{"tag at head", domain.LocalRepository{Head: head, Tags: []string{"0.9.3"}}, tagged, false},
		{"v tag at head", domain.LocalRepository{Head: head, Tags: []string{"v0.9.3"}}, tagged, false},
		{"tag elsewhere", domain.LocalRepository{Head: head, Tags: []string{"0.9.2"}}, tagged, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reconcile(tt.local, tt.resolved))
		})
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"0.9.3", "0.9.2", 1},
		{"0.9.10", "0.9.9", 1},
		{"1.0.0", "1.0.0", 0},
		{"0.9.3-DEBUG", "0.9.3", -1},
		{"v1.2.0", "1.1.9", 1},
		{"2023-10-01", "2023-09-30", 1},
		{"build7", "build10", -1},
		{"1.0", "1.0.1", -1},
		{"007", "7", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CompareVersions(tt.a, tt.b), "%s vs %s", tt.a, tt.b)
	}
}
