package index

import "fmt"

// GraphNode is a note in the link graph.
type GraphNode struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	FolderID string `json:"folder_id,omitempty"`
}

// GraphLink is a [[Title]] reference between two notes. Target is empty
// when no note carries the referenced title.
type GraphLink struct {
	Source string `json:"source"`
	Target string `json:"target,omitempty"`
	Title  string `json:"title"`
}

// Graph returns every note and every outgoing reference. When several
// notes share a title the link points at the oldest one by rowid.
func (db *DB) Graph() ([]GraphNode, []GraphLink, error) {
	nodes := []GraphNode{}
	rows, err := db.conn.Query(`SELECT id, title, folder_id FROM notes ORDER BY title, id`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph nodes: %w", err)
	}
	for rows.Next() {
		var n GraphNode
		if err := rows.Scan(&n.ID, &n.Title, &n.FolderID); err != nil {
			rows.Close()
			return nil, nil, err
		}
		nodes = append(nodes, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	links := []GraphLink{}
	rows, err = db.conn.Query(`
		SELECT l.source,
		       COALESCE((SELECT n.id FROM notes n WHERE n.title_key = l.target_key ORDER BY n.rowid LIMIT 1), ''),
		       l.target
		FROM links l
		ORDER BY l.source, l.target_key
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph links: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l GraphLink
		if err := rows.Scan(&l.Source, &l.Target, &l.Title); err != nil {
			return nil, nil, err
		}
		links = append(links, l)
	}
	return nodes, links, rows.Err()
}
