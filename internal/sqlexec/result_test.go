package sqlexec

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_MarshalJSON(t *testing.T) {
	exec, _ := setupTestExecutor(t)
	ctx := context.Background()

	t.Run("AllWithoutRows", func(t *testing.T) {
		res, err := exec.Execute(ctx, `SELECT * FROM "users"`, nil, ModeAll)
		require.NoError(t, err)

		b, err := json.Marshal(res)
		require.NoError(t, err)
		assert.JSONEq(t, `{"mode":"all","statements":1,"rows":[]}`, string(b))
	})

	t.Run("AllNilRows", func(t *testing.T) {
		b, err := json.Marshal(Result{Mode: ModeAll, Statements: 1})
		require.NoError(t, err)
		assert.JSONEq(t, `{"mode":"all","statements":1,"rows":[]}`, string(b))
	})

	t.Run("GetWithoutRow", func(t *testing.T) {
		res, err := exec.Execute(ctx, `SELECT * FROM "users" WHERE "id" = ?`, []any{1}, ModeGet)
		require.NoError(t, err)

		b, err := json.Marshal(res)
		require.NoError(t, err)
		assert.JSONEq(t, `{"mode":"get","statements":1,"row":null}`, string(b))
	})

	t.Run("Run", func(t *testing.T) {
		res, err := exec.Execute(ctx, `DELETE FROM "users"`, nil, ModeRun)
		require.NoError(t, err)

		b, err := json.Marshal(res)
		require.NoError(t, err)
		assert.JSONEq(t, `{"mode":"run","statements":1,"run":{"affected_rows":0,"insert_id":0,"rows":[]}}`, string(b))
	})
}
