package index

import "database/sql"

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	out := make([]SearchResult, 0)
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Line, &r.Text, &r.Completed, &r.Section, &r.Indent, &r.Notes, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
