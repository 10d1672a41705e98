package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dayData struct {
	Date      string         `json:"date"`
	Instances []instanceData `json:"instances"`
}

type instanceData struct {
	ID           string `json:"id"`
	Entity       string `json:"entity"`
	Date         string `json:"date"`
	Status       string `json:"status"`
	Assignee     string `json:"assignee"`
	DeferredTo   string `json:"deferred_to"`
	Name         string `json:"name"`
	Time         string `json:"time"`
	Materialized bool   `json:"materialized"`
}

func entities(insts []instanceData) []string {
	out := make([]string, 0, len(insts))
	for _, inst := range insts {
		out = append(out, inst.Entity)
	}
	return out
}

var monday = time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)

func TestDone_ThenDayListsInstance(t *testing.T) {
	c := newTestCLI(t, monday)

	var inst instanceData
	_, err := c.runJSON(&inst, "done", "routine", "trash", "2024-01-15", "--as", "alice")
	require.NoError(t, err)
	assert.Equal(t, "id-0001", inst.ID)
	assert.Equal(t, "completed", inst.Status)

	var day dayData
	_, err = c.runJSON(&day, "day", "2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", day.Date)
	require.Len(t, day.Instances, 1)
	assert.Equal(t, "routine/trash", day.Instances[0].Entity)
	assert.Equal(t, "completed", day.Instances[0].Status)

	_, err = c.runJSON(&inst, "undo", "routine", "trash", "today", "--as", "alice")
	require.NoError(t, err)
	assert.Equal(t, "pending", inst.Status)
}

func TestDay_TextOutput(t *testing.T) {
	c := newTestCLI(t, monday)

	out, _, err := c.run("day")
	require.NoError(t, err)
	assert.Contains(t, out, "2024-01-15 (Monday)")
	assert.Contains(t, out, "nothing recorded")

	_, _, err = c.run("skip", "calendar_event", "dentist", "tomorrow", "--as", "bob")
	require.NoError(t, err)

	out, _, err = c.run("day", "tomorrow")
	require.NoError(t, err)
	assert.Contains(t, out, "calendar_event/dentist 2024-01-16 skipped")
}

func TestMutation_RequiresMember(t *testing.T) {
	c := newTestCLI(t, monday)

	resp, err := c.runJSON(nil, "done", "routine", "trash", "2024-01-15")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.True(t, IsReported(err))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_AUTHENTICATED", resp.Error.Code)

	var day dayData
	_, err = c.runJSON(&day, "day", "2024-01-15")
	require.NoError(t, err)
	assert.Empty(t, day.Instances)
}

func TestMutation_MemberFromConfig(t *testing.T) {
	c := newTestCLI(t, monday)
	require.NoError(t, os.WriteFile(c.config, []byte("member: bob\n"), 0644))

	var inst instanceData
	_, err := c.runJSON(&inst, "skip", "routine", "trash", "2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, "skipped", inst.Status)
	assert.FileExists(t, filepath.Join(c.dir, "hearth.db"))
}

func TestMutation_InvalidArguments(t *testing.T) {
	c := newTestCLI(t, monday)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown entity type", []string{"done", "chore", "trash", "2024-01-15"}},
		{"bad date", []string{"done", "routine", "trash", "15/01/2024"}},
		{"bad target", []string{"defer", "routine", "trash", "2024-01-15", "next week"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := c.runJSON(nil, append(tt.args, "--as", "alice")...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			require.NotNil(t, resp.Error)
			assert.Equal(t, "INVALID_ARGUMENT", resp.Error.Code)
		})
	}
}

func TestReschedule_SameDayAndCrossDay(t *testing.T) {
	c := newTestCLI(t, time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC))
	tz := []string{"--tz", "America/New_York", "--as", "alice"}

	var inst instanceData
	_, err := c.runJSON(&inst, append([]string{"reschedule", "routine", "vitamins", "2024-06-10", "21:00"}, tz...)...)
	require.NoError(t, err)
	assert.Equal(t, "pending", inst.Status)
	assert.Equal(t, "2024-06-10T21:00:00-04:00", inst.DeferredTo)

	_, err = c.runJSON(&inst, append([]string{"reschedule", "routine", "laundry", "2024-06-10", "2024-06-12T09:00"}, tz...)...)
	require.NoError(t, err)
	assert.Equal(t, "deferred", inst.Status)
	assert.Equal(t, "2024-06-10", inst.Date)

	var day dayData
	_, err = c.runJSON(&day, append([]string{"day", "2024-06-10"}, tz...)...)
	require.NoError(t, err)
	assert.Equal(t, []string{"routine/vitamins"}, entities(day.Instances))

	_, err = c.runJSON(&day, append([]string{"day", "2024-06-12"}, tz...)...)
	require.NoError(t, err)
	assert.Equal(t, []string{"routine/laundry"}, entities(day.Instances))
}

func TestDefer_MovesInstance(t *testing.T) {
	c := newTestCLI(t, monday)

	var inst instanceData
	_, err := c.runJSON(&inst, "defer", "routine", "trash", "2024-01-15", "2024-01-16T19:00:00Z", "--as", "alice")
	require.NoError(t, err)
	assert.Equal(t, "deferred", inst.Status)

	var day dayData
	_, err = c.runJSON(&day, "day", "2024-01-15")
	require.NoError(t, err)
	assert.Empty(t, day.Instances)

	_, err = c.runJSON(&day, "day", "2024-01-16")
	require.NoError(t, err)
	assert.Equal(t, []string{"routine/trash"}, entities(day.Instances))
}

const choresYAML = `definitions:
  - id: trash
    name: Take out trash
    pattern: {kind: weekly, weekdays: [mon]}
    time_of_day: "19:00"
  - id: vitamins
    name: Vitamins
    pattern: {kind: daily}
    time_of_day: "07:30"
    assignee: alice
  - id: gutters
    name: Clean gutters
    pattern: {kind: yearly, month: 10, day_of_month: 1}
`

func TestDue_MergesDefinitionsAndInstances(t *testing.T) {
	c := newTestCLI(t, monday)
	defsDir := filepath.Join(c.dir, "definitions")
	require.NoError(t, os.MkdirAll(defsDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(defsDir, "chores.yaml"), []byte(choresYAML), 0644))

	var agenda struct {
		Date  string         `json:"date"`
		Items []instanceData `json:"items"`
	}
	_, err := c.runJSON(&agenda, "due", "2024-01-15")
	require.NoError(t, err)
	require.Equal(t, []string{"routine/vitamins", "routine/trash"}, entities(agenda.Items))
	assert.Equal(t, "07:30", agenda.Items[0].Time)
	assert.Equal(t, "alice", agenda.Items[0].Assignee)
	assert.False(t, agenda.Items[1].Materialized)

	_, _, err = c.run("done", "routine", "trash", "2024-01-15", "--as", "bob")
	require.NoError(t, err)

	_, err = c.runJSON(&agenda, "due", "2024-01-15")
	require.NoError(t, err)
	require.Len(t, agenda.Items, 2)
	assert.True(t, agenda.Items[1].Materialized)
	assert.Equal(t, "completed", agenda.Items[1].Status)

	out, _, err := c.run("due", "2024-01-16")
	require.NoError(t, err)
	assert.Contains(t, out, "Vitamins (alice)")
	assert.NotContains(t, out, "Take out trash")
}

func TestDue_MissingDefinitionsWarns(t *testing.T) {
	c := newTestCLI(t, monday)

	out, errOut, err := c.run("due")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing due")
	assert.Contains(t, errOut, "definitions path does not exist")
}

func TestDue_BrokenDefinitions(t *testing.T) {
	c := newTestCLI(t, monday)
	path := filepath.Join(c.dir, "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("definitions:\n  - name: no id\n"), 0644))

	_, _, err := c.run("due", "--defs", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCover_RequestRespondList(t *testing.T) {
	c := newTestCLI(t, time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC))

	var req struct {
		ID          string `json:"id"`
		InstanceID  string `json:"instance_id"`
		RequestedBy string `json:"requested_by"`
		CoveredBy   string `json:"covered_by"`
		Status      string `json:"status"`
	}
	_, err := c.runJSON(&req, "cover", "request", "routine", "dog-walk", "2024-03-04", "--as", "alice")
	require.NoError(t, err)
	assert.Equal(t, "id-0001", req.InstanceID)
	assert.Equal(t, "id-0002", req.ID)
	assert.Equal(t, "pending", req.Status)

	var list struct {
		Active  *struct{ ID string }  `json:"active"`
		History []struct{ ID string } `json:"history"`
	}
	_, err = c.runJSON(&list, "cover", "list", "routine", "dog-walk", "2024-03-04")
	require.NoError(t, err)
	require.NotNil(t, list.Active)
	assert.Equal(t, "id-0002", list.Active.ID)

	_, err = c.runJSON(&req, "cover", "respond", "id-0002", "--accept", "--as", "bob")
	require.NoError(t, err)
	assert.Equal(t, "accepted", req.Status)
	assert.Equal(t, "bob", req.CoveredBy)

	resp, err := c.runJSON(nil, "cover", "respond", "id-0002", "--decline", "--as", "carol")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "ALREADY_RESOLVED", resp.Error.Code)

	list.Active = nil
	_, err = c.runJSON(&list, "cover", "list", "routine", "dog-walk", "2024-03-04")
	require.NoError(t, err)
	assert.Nil(t, list.Active)
	assert.Len(t, list.History, 1)

	var day dayData
	_, err = c.runJSON(&day, "day", "2024-03-04")
	require.NoError(t, err)
	require.Len(t, day.Instances, 1)
	assert.Equal(t, "bob", day.Instances[0].Assignee)
}

func TestCover_RespondErrors(t *testing.T) {
	c := newTestCLI(t, monday)

	_, _, err := c.run("cover", "respond", "id-0001", "--as", "bob")
	require.Error(t, err)

	_, _, err = c.run("cover", "respond", "id-0001", "--accept", "--decline", "--as", "bob")
	require.Error(t, err)

	resp, err := c.runJSON(nil, "cover", "respond", "nope", "--accept", "--as", "bob")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)

	var list struct {
		History []any `json:"history"`
	}
	_, err = c.runJSON(&list, "cover", "list", "routine", "trash", "2024-01-15")
	require.NoError(t, err)
	assert.NotNil(t, list.History)
	assert.Empty(t, list.History)
}

func TestNote_AddListRemove(t *testing.T) {
	c := newTestCLI(t, monday)

	resp, err := c.runJSON(nil, "note", "add", "routine", "trash", "2024-01-15", "hello", "--as", "alice")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)

	_, _, err = c.run("done", "routine", "trash", "2024-01-15", "--as", "alice")
	require.NoError(t, err)

	var note struct {
		ID     string `json:"id"`
		Author string `json:"author"`
		Body   string `json:"body"`
	}
	_, err = c.runJSON(&note, "note", "add", "routine", "trash", "2024-01-15", "recycling", "too ", "--as", "alice")
	require.NoError(t, err)
	assert.Equal(t, "id-0002", note.ID)
	assert.Equal(t, "alice", note.Author)
	assert.Equal(t, "recycling too", note.Body)

	out, _, err := c.run("note", "list", "routine", "trash", "2024-01-15")
	require.NoError(t, err)
	assert.Contains(t, out, "alice: recycling too")

	_, _, err = c.run("note", "rm", "id-0002", "--as", "alice")
	require.NoError(t, err)

	var list struct {
		Notes []any `json:"notes"`
	}
	_, err = c.runJSON(&list, "note", "list", "routine", "trash", "2024-01-15")
	require.NoError(t, err)
	assert.Empty(t, list.Notes)
}

func TestNote_EmptyBody(t *testing.T) {
	c := newTestCLI(t, monday)
	_, _, err := c.run("done", "routine", "trash", "2024-01-15", "--as", "alice")
	require.NoError(t, err)

	resp, err := c.runJSON(nil, "note", "add", "routine", "trash", "2024-01-15", "   ", "--as", "alice")
	require.Error(t, err)
	assert.Equal(t, "INVALID_ARGUMENT", resp.Error.Code)
}

func TestInit_WritesConfig(t *testing.T) {
	c := newTestCLI(t, monday)

	out, _, err := c.run("init", "--tz", "Europe/Berlin", "--as", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+c.config)

	data, err := os.ReadFile(c.config)
	require.NoError(t, err)
	assert.Contains(t, string(data), "timezone: Europe/Berlin")
	assert.Contains(t, string(data), "member: alice")

	_, _, err = c.run("init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = c.run("init", "--force")
	require.NoError(t, err)
	data, err = os.ReadFile(c.config)
	require.NoError(t, err)
	assert.Contains(t, string(data), "timezone: UTC")

	// The written file drives later commands.
	_, _, err = c.run("init", "--force", "--as", "carol")
	require.NoError(t, err)
	out, _, err = c.run("skip", "routine", "trash", "2024-01-15")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "routine/trash 2024-01-15 skipped"))
}

func TestInit_RejectsUnknownTimezone(t *testing.T) {
	c := newTestCLI(t, monday)

	_, _, err := c.run("init", "--tz", "Mars/Olympus")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.NoFileExists(t, c.config)
}
