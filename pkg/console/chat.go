package console

import (
	"strings"

	"github.com/cuemby/etlconsole/pkg/chat"
	"github.com/cuemby/etlconsole/pkg/types"
)

// SkeletonMessage is the placeholder shown while an answer is generated
const SkeletonMessage = "Generating..."

var _ chat.View = (*Console)(nil)

func (c *Console) ShowLoading(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.println(c.st.muted.Render(msg))
}

func (c *Console) ShowBlocked(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.println(c.st.warn.Render(msg))
}

func (c *Console) ShowReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.println(c.st.ok.Render("Query engine ready."))
}

func (c *Console) AddUserBubble(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.println(c.st.user.Render("> " + text))
}

func (c *Console) AddBotSkeleton() chat.Card {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.println(c.st.muted.Render(SkeletonMessage))
	return &card{console: c}
}

func (c *Console) ClearTranscript() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.println(c.st.title.Render("New report"))
}

// card is the answer slot for one question
type card struct {
	console *Console
}

func (k *card) Render(result *types.AskResult) {
	c := k.console
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	b.WriteString(c.st.label.Render("SQL:") + "\n")
	b.WriteString(strings.TrimSpace(result.SQL) + "\n\n")
	b.WriteString(c.st.label.Render("Summary:") + "\n")
	b.WriteString(strings.TrimSpace(result.Summary) + "\n\n")
	b.WriteString(c.st.label.Render("Table:") + "\n")

	table, err := ParseTable(result.Table)
	switch {
	case err != nil:
		b.WriteString(c.st.err.Render("unreadable table: "+err.Error()) + "\n")
	case table == nil:
		b.WriteString(c.st.muted.Render("(no table)") + "\n")
	default:
		if err := table.Render(&b); err != nil {
			b.WriteString(c.st.err.Render("unreadable table: "+err.Error()) + "\n")
		}
	}

	if result.ExcelURL != "" {
		b.WriteString("\nDownload Excel: " + c.link(result.ExcelURL))
	}

	c.println(c.st.panel.Render(strings.TrimRight(b.String(), "\n")))
}

func (k *card) RenderError(err error) {
	c := k.console
	c.mu.Lock()
	defer c.mu.Unlock()
	c.println(c.st.err.Render("Error: " + err.Error()))
}

// link resolves a backend link. Callers hold c.mu.
func (c *Console) link(ref string) string {
	if c.resolver == nil {
		return ref
	}
	abs, err := c.resolver.Resolve(ref)
	if err != nil {
		return ref
	}
	return abs
}
