package console

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pandas DataFrame.to_html(classes="tbl", index=False, border=0)
const dataframeHTML = `<table border="0" class="dataframe tbl">
  <thead>
    <tr style="text-align: right;">
      <th>region</th>
      <th>total sales</th>
    </tr>
  </thead>
  <tbody>
    <tr>
      <td>North</td>
      <td>1200</td>
    </tr>
    <tr>
      <td>South</td>
      <td>
        950
      </td>
    </tr>
  </tbody>
</table>`

func TestParseTable(t *testing.T) {
	table, err := ParseTable(dataframeHTML)
	require.NoError(t, err)
	require.NotNil(t, table)

	assert.Equal(t, []string{"region", "total sales"}, table.Header)
	assert.Equal(t, [][]string{{"North", "1200"}, {"South", "950"}}, table.Rows)
}

func TestParseTable_NoTable(t *testing.T) {
	for _, markup := range []string{"", "   ", "<p>nothing here</p>"} {
		table, err := ParseTable(markup)
		assert.NoError(t, err)
		assert.Nil(t, table, "markup %q", markup)
	}
}

func TestParseTable_EmptyResult(t *testing.T) {
	table, err := ParseTable(`<table><thead><tr><th>a</th></tr></thead><tbody></tbody></table>`)
	require.NoError(t, err)
	require.NotNil(t, table)
	assert.Equal(t, []string{"a"}, table.Header)
	assert.Empty(t, table.Rows)
}

func TestParseTable_NoHeader(t *testing.T) {
	table, err := ParseTable(`<table><tr><td>1</td><td>2</td></tr></table>`)
	require.NoError(t, err)
	assert.Nil(t, table.Header)
	assert.Equal(t, [][]string{{"1", "2"}}, table.Rows)
}

func TestTableRender(t *testing.T) {
	table, err := ParseTable(dataframeHTML)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, table.Render(&buf))

	out := buf.String()
	assert.Contains(t, out, "North")
	assert.Contains(t, out, "1200")
	assert.Contains(t, out, "South")
}
