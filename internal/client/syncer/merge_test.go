package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/01011010/notesum-hybrid/internal/models"
)

var base = time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)

func localPage(content string, modified time.Time, pending bool) models.Page {
	return models.Page{
		ID:           "p1",
		Name:         "Groceries",
		Order:        1,
		Content:      content,
		CreatedAt:    base,
		LastModified: modified,
		LastSynced:   base,
		PendingSync:  pending,
		SyncStatus:   models.SyncStatusSynced,
	}
}

func remotePage(modified time.Time) models.RemotePage {
	return models.RemotePage{ID: "p1", Name: "Groceries", Order: 1, LastModified: modified, IsEncrypted: true}
}

func TestShouldMerge(t *testing.T) {
	tests := []struct {
		name    string
		local   models.Page
		remote  models.RemotePage
		content string
		want    bool
	}{
		{
			name:    "identical within tolerance",
			local:   localPage("milk", base.Add(10*time.Second), false),
			remote:  remotePage(base),
			content: "milk",
			want:    false,
		},
		{
			name:    "identical beyond tolerance",
			local:   localPage("milk", base.Add(2*time.Minute), false),
			remote:  remotePage(base),
			content: "milk",
			want:    true,
		},
		{
			name:    "content differs",
			local:   localPage("milk", base, false),
			remote:  remotePage(base),
			content: "milk, eggs",
			want:    true,
		},
		{
			name:    "pending and identical ignores time gap",
			local:   localPage("milk", base.Add(time.Hour), true),
			remote:  remotePage(base),
			content: "milk",
			want:    false,
		},
		{
			name:    "pending and renamed remotely",
			local:   localPage("milk", base, true),
			remote:  models.RemotePage{ID: "p1", Name: "Shopping", Order: 1, LastModified: base},
			content: "milk",
			want:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldMerge(tt.local, tt.remote, tt.content))
		})
	}
}

func TestMerge_RemoteNewerWins(t *testing.T) {
	now := base.Add(time.Hour)
	local := localPage("milk", base.Add(time.Minute), false)
	remote := remotePage(base.Add(5 * time.Minute))
	remote.Name = "Shopping"
	remote.Order = 3

	m := Merge(local, remote, "bread", now)

	assert.Equal(t, "bread", m.Content)
	assert.Equal(t, "Shopping", m.Name)
	assert.Equal(t, 3, m.Order)
	assert.Equal(t, remote.LastModified, m.LastModified)
	assert.False(t, m.PendingSync)
	assert.Equal(t, now, m.LastSynced)
	assert.Equal(t, models.SyncStatusMerged, m.SyncStatus)
}

func TestMerge_RemoteNewerKeepsLongerPendingContent(t *testing.T) {
	now := base.Add(time.Hour)
	local := localPage("milk, eggs, flour", base.Add(time.Minute), true)
	remote := remotePage(base.Add(5 * time.Minute))

	m := Merge(local, remote, "milk", now)

	assert.Equal(t, "milk, eggs, flour", m.Content)
	assert.True(t, m.PendingSync)
	assert.True(t, m.LastModified.After(m.LastSynced))
	assert.Equal(t, models.SyncStatusMerged, m.SyncStatus)
}

func TestMerge_RemoteNewerTakesLongerRemoteContent(t *testing.T) {
	local := localPage("milk", base.Add(time.Minute), true)
	remote := remotePage(base.Add(5 * time.Minute))

	m := Merge(local, remote, "milk, eggs", base.Add(time.Hour))

	assert.Equal(t, "milk, eggs", m.Content)
	assert.True(t, m.PendingSync)
}

func TestMerge_LocalNewerAdoptsRemoteRename(t *testing.T) {
	now := base.Add(time.Hour)
	local := localPage("milk", base.Add(5*time.Minute), false)
	local.LastSynced = base.Add(5 * time.Minute)
	remote := remotePage(base)
	remote.Name = "Shopping"

	m := Merge(local, remote, "old", now)

	assert.Equal(t, "milk", m.Content)
	assert.Equal(t, "Shopping", m.Name)
	assert.True(t, m.PendingSync)
	assert.Equal(t, now, m.LastModified)
}

func TestMerge_LocalNewerKeepsEverything(t *testing.T) {
	now := base.Add(time.Hour)
	local := localPage("milk", base.Add(5*time.Minute), false)
	remote := remotePage(base)

	m := Merge(local, remote, "old", now)

	assert.Equal(t, "milk", m.Content)
	assert.False(t, m.PendingSync)
	assert.Equal(t, now, m.LastSynced)
	assert.Equal(t, models.SyncStatusMerged, m.SyncStatus)
}
