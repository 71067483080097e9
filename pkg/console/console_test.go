package console

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/cuemby/etlconsole/pkg/types"
	"github.com/stretchr/testify/assert"
)

type prefixResolver string

func (p prefixResolver) Resolve(ref string) (string, error) {
	if strings.HasPrefix(ref, "bad") {
		return "", errors.New("bad ref")
	}
	return string(p) + ref, nil
}

func TestConsole_JobView(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, nil)

	assert.True(t, c.ControlsEnabled())
	c.SetControlsEnabled(false)
	c.ShowOverlay(true)
	c.ShowOverlay(true)
	c.AppendLog("ETL launched (window = 120 days)")
	c.SetProgress(50)

	assert.False(t, c.ControlsEnabled())
	assert.True(t, c.OverlayVisible())
	pct, failed := c.Progress()
	assert.Equal(t, 50, pct)
	assert.False(t, failed)

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "ETL progress"), "overlay header printed once")
	assert.Contains(t, out, "ETL launched (window = 120 days)")
	assert.Contains(t, out, strings.Repeat("█", BarWidth/2)+strings.Repeat("░", BarWidth/2))
	assert.Contains(t, out, " 50%")
}

func TestConsole_ErrorTreatmentAndReset(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, nil)

	c.SetProgress(30)
	c.MarkProgressError()
	pct, failed := c.Progress()
	assert.Equal(t, 30, pct)
	assert.True(t, failed)

	c.ResetProgress()
	pct, failed = c.Progress()
	assert.Equal(t, 0, pct)
	assert.False(t, failed)
}

func TestConsole_BarClamps(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, nil)

	c.SetProgress(150)
	assert.Contains(t, buf.String(), strings.Repeat("█", BarWidth))
	assert.Contains(t, buf.String(), "100%")
}

func TestConsole_ClearLogAndAlert(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, nil)

	c.AppendLog("one")
	c.AppendLog("two")
	assert.Equal(t, []string{"one", "two"}, c.Lines())

	c.ClearLog()
	assert.Empty(t, c.Lines())

	c.Alert("Failed to create the ETL job: busy")
	assert.Contains(t, buf.String(), "! Failed to create the ETL job: busy")
}

func TestConsole_ChatView(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, prefixResolver("http://backend:5000"))

	c.ShowLoading("Loading query engine...")
	c.ShowReady()
	c.AddUserBubble("sales by region")
	card := c.AddBotSkeleton()
	card.Render(&types.AskResult{
		SQL:      "SELECT region, SUM(total) FROM sales GROUP BY region",
		Summary:  "**North** leads.",
		Table:    dataframeHTML,
		ExcelURL: "/download/abc",
	})

	out := buf.String()
	assert.Contains(t, out, "Loading query engine...")
	assert.Contains(t, out, "Query engine ready.")
	assert.Contains(t, out, "> sales by region")
	assert.Contains(t, out, SkeletonMessage)
	assert.Contains(t, out, "SELECT region, SUM(total) FROM sales GROUP BY region")
	assert.Contains(t, out, "**North** leads.")
	assert.Contains(t, out, "North")
	assert.Contains(t, out, "1200")
	assert.Contains(t, out, "http://backend:5000/download/abc")
}

func TestConsole_CardWithoutTableOrLink(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, prefixResolver("http://x"))

	c.AddBotSkeleton().Render(&types.AskResult{SQL: "SELECT 1", ExcelURL: "bad-link"})

	out := buf.String()
	assert.Contains(t, out, "(no table)")
	assert.Contains(t, out, "bad-link", "unresolvable links are printed as received")
}

func TestConsole_CardError(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, nil)

	c.AddBotSkeleton().RenderError(errors.New("ask: HTTP 500"))
	c.ShowBlocked("No data yet. Open the ETL process and run it.")
	c.ClearTranscript()

	out := buf.String()
	assert.Contains(t, out, "Error: ask: HTTP 500")
	assert.Contains(t, out, "No data yet. Open the ETL process and run it.")
	assert.Contains(t, out, "New report")
}
