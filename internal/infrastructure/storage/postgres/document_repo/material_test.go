package document_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshop/internal/core/entity"
	"workshop/internal/core/id"
)

func TestIssuedPartsQuery(t *testing.T) {
	woID, self := id.New(), id.New()

	sql, args, err := issuedPartsQuery(woID, self, []string{"P-OIL", "P-PAD"}).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT it.part, d.id, d.number, d.docstatus FROM doc_material_issues d "+
			"JOIN doc_material_issue_items it ON it.issue_id = d.id "+
			"WHERE d.work_order = $1 AND it.part IN ($2,$3) AND d.docstatus <> $4 AND d.id <> $5 "+
			"ORDER BY d.number",
		sql)
	assert.Equal(t, []any{woID.String(), "P-OIL", "P-PAD", entity.DocStatusCancelled, self.String()}, args)
}
