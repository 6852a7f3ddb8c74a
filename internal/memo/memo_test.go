package memo_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tasknode/internal/domain"
	"tasknode/internal/memo"
)

func TestDecode(t *testing.T) {
	got, err := memo.Decode(`\x48656c6c6f`)
	require.NoError(t, err)
	require.Equal(t, "Hello", got)

	got, err = memo.Decode("48656c6c6f")
	require.NoError(t, err)
	require.Equal(t, "Hello", got)

	got, err = memo.Decode("")
	require.NoError(t, err)
	require.Equal(t, "", got)

	_, err = memo.Decode("zz")
	require.Error(t, err)
}

func TestEncode(t *testing.T) {
	require.Equal(t, `\x48656c6c6f`, memo.Encode("Hello"))
	decoded, err := memo.Decode(memo.Encode("task proposal text"))
	require.NoError(t, err)
	require.Equal(t, "task proposal text", decoded)
}

func TestExtractTaskID(t *testing.T) {
	id, ok := memo.ExtractTaskID("v1.0.2025-01-13_06:53__QQ74__TASK_REQUEST")
	require.True(t, ok)
	require.Equal(t, "v1.0.2025-01-13_06:53__QQ74", id)

	// The disambiguator is optional.
	id, ok = memo.ExtractTaskID("v1.0.2025-01-13_06:53__PROPOSAL")
	require.True(t, ok)
	require.Equal(t, "v1.0.2025-01-13_06:53", id)

	_, ok = memo.ExtractTaskID("chat message")
	require.False(t, ok)
}

func TestTaskSuffix(t *testing.T) {
	require.Equal(t, "TASK_REQUEST", memo.TaskSuffix("v1.0.2025-01-13_06:53__QQ74__TASK_REQUEST"))
	require.Equal(t, "INITIATION_RITE", memo.TaskSuffix("v1.0.2025-01-13_06:53__QQ74__INITIATION_RITE"))
	require.Equal(t, "", memo.TaskSuffix("not a protocol memo"))
}

func TestDeriveResponseType(t *testing.T) {
	got, err := memo.DeriveResponseType("v1.0.2025-01-13_06:53__QQ74__TASK_REQUEST", memo.SuffixProposal)
	require.NoError(t, err)
	require.Equal(t, "v1.0.2025-01-13_06:53__QQ74__PROPOSAL", got)

	_, err = memo.DeriveResponseType("no task id here", memo.SuffixProposal)
	require.Error(t, err)
	var ce domain.ConfigurationError
	require.ErrorAs(t, err, &ce)
}

func TestNewTaskID(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 30, 45, 0, time.UTC)
	id := memo.NewTaskID(now)
	require.Regexp(t, regexp.MustCompile(`^v1\.0\.2024-06-01_12:30__[A-Z0-9]{4}$`), id)

	extracted, ok := memo.ExtractTaskID(memo.TaskType(id, memo.SuffixReward))
	require.True(t, ok)
	require.Equal(t, id, extracted)
}

func TestExtractField(t *testing.T) {
	text := "preamble | Reward | 100 | | Justification | Solid effort |"
	value, err := memo.ExtractField(text, "| Justification |")
	require.NoError(t, err)
	require.Equal(t, "Solid effort", value)

	_, err = memo.ExtractField(text, "| Missing |")
	var ee memo.ExtractionError
	require.ErrorAs(t, err, &ee)

	_, err = memo.ExtractField("| Reward | |", "| Reward |")
	require.Error(t, err)
}

func TestExtractInt(t *testing.T) {
	n, err := memo.ExtractInt("| Total PFT Rewarded | 750 |", "| Total PFT Rewarded |")
	require.NoError(t, err)
	require.Equal(t, 750, n)

	n, err = memo.ExtractInt("| Reward | about 40 tokens |", "| Reward |")
	require.NoError(t, err)
	require.Equal(t, 40, n)

	_, err = memo.ExtractInt("| Reward | none |", "| Reward |")
	require.Error(t, err)
}

func TestBetween(t *testing.T) {
	text := "before\nTASK VERIFICATION SECTION START\n  details here \nTASK VERIFICATION SECTION END\nafter"
	section, ok := memo.Between(text, "TASK VERIFICATION SECTION START", "TASK VERIFICATION SECTION END")
	require.True(t, ok)
	require.Equal(t, "details here", section)

	_, ok = memo.Between("no markers", "START", "END")
	require.False(t, ok)
}
