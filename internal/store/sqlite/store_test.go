package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"cloneexec/internal/store/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestAuditInsertAndList(t *testing.T) {
	ctx := context.Background()
	st, err := NewStore(filepath.Join(t.TempDir(), "db", "audit.db"))
	require.NoError(t, err)
	defer st.Close()

	rows := []model.AuditMessageModel{
		{CloneID: "c1", Status: "PLA", Timestamp: 1000, Payload: datatypes.JSON(`{"id":"1"}`)},
		{CloneID: "c1", Status: "FIL", Timestamp: 2000, Payload: datatypes.JSON(`{"id":"2"}`)},
		{CloneID: "c2", Status: "PLA", Timestamp: 3000, Payload: datatypes.JSON(`{"id":"3"}`)},
	}
	for i := range rows {
		require.NoError(t, st.InsertAudit(ctx, &rows[i]))
	}

	got, err := st.ListAudit(ctx, "c1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "FIL", got[0].Status)
	assert.JSONEq(t, `{"id":"2"}`, string(got[0].Payload))

	all, err := st.ListAudit(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "c2", all[0].CloneID)

	counts, err := st.CountByStatus(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"PLA": 2, "FIL": 1}, counts)

	assert.Error(t, st.InsertAudit(ctx, nil))
}
