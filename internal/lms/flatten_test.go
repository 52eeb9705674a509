package lms

import (
	"testing"

	"github.com/koustreak/rostersync/internal/batch"
	"github.com/koustreak/rostersync/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleUsers() []map[string]any {
	return []map[string]any{
		{
			"id":        "u-1",
			"firstName": "Ada",
			"roleIds":   []any{"r-1", "r-2"},
			"customFields": map[string]any{
				"shirtSize": "M",
				"team":      nil,
			},
		},
		{
			"id":           "u-2",
			"firstName":    "Grace",
			"emailAddress": "grace@example.com",
			"customFields": map[string]any{
				"shirtSize": "L",
				"team":      "blue",
			},
		},
	}
}

func flat(t *testing.T) *batch.Batch {
	t.Helper()
	b, err := Flatten(sampleUsers())
	require.NoError(t, err)
	return b
}

func TestFlatten(t *testing.T) {
	b := flat(t)

	assert.Equal(t, []string{
		"firstName", "id", "roleIds",
		"customFields.shirtSize", "customFields.team",
		"emailAddress",
	}, b.Columns)

	require.Equal(t, 2, b.Len())
	assert.Equal(t, `["r-1","r-2"]`, b.Records[0]["roleIds"])
	assert.Equal(t, "M", b.Records[0]["customFields.shirtSize"])
	assert.Nil(t, b.Records[0]["emailAddress"])
	assert.Equal(t, "blue", b.Records[1]["customFields.team"])
}

func TestFlatten_UnencodableArrayFails(t *testing.T) {
	users := sampleUsers()
	users[1]["roleIds"] = []any{"r-1", make(chan int)}

	b, err := Flatten(users)
	require.Error(t, err)
	assert.Nil(t, b)
	assert.True(t, errs.IsInvalidInput(err))
	assert.Contains(t, err.Error(), `id=u-2`)
	assert.Contains(t, err.Error(), `"roleIds"`)
}

func TestRename(t *testing.T) {
	b := flat(t)
	Rename(b, DefaultColumnNames)

	assert.Equal(t, []string{
		"first_name", "lms_user_id", "role_ids",
		"customFields.shirtSize", "customFields.team",
		"email_address",
	}, b.Columns)
	assert.Equal(t, "u-2", b.Records[1]["lms_user_id"])
	_, stale := b.Records[1]["id"]
	assert.False(t, stale)
}

func TestConsolidateCustomFields(t *testing.T) {
	b := flat(t)
	ConsolidateCustomFields(b)

	assert.Equal(t, []string{"firstName", "id", "roleIds", "emailAddress", "custom_fields"}, b.Columns)
	assert.Equal(t, map[string]any{"customFields.shirtSize": "M"}, b.Records[0]["custom_fields"])
	assert.Equal(t, map[string]any{"customFields.shirtSize": "L", "customFields.team": "blue"}, b.Records[1]["custom_fields"])
	_, stale := b.Records[0]["customFields.team"]
	assert.False(t, stale)
}

func TestConsolidateCustomFields_NoCustomFields(t *testing.T) {
	b := batch.New("id")
	b.Append(batch.Record{"id": "u-1"})

	ConsolidateCustomFields(b)

	assert.Equal(t, []string{"id", "custom_fields"}, b.Columns)
	assert.Equal(t, map[string]any{}, b.Records[0]["custom_fields"])
}
