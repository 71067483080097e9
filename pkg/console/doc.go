/*
Package console is the terminal front end of etlconsole.

A Console implements both job.View and chat.View. Job progress prints as a
stream: an "ETL progress" header when the overlay opens, each log line
indented, and a progress bar whenever the percent changes. A failed job
redraws the bar in red. Chat answers print as a bordered card holding the
SQL, the summary, the result table and the Excel download link.

The backend sends result tables as HTML. ParseTable extracts the first
<table> into header and rows, and Table.Render prints it with tablewriter.

Styles come from a lipgloss renderer bound to the output writer, so colors
are dropped automatically when output is not a terminal.
*/
package console
