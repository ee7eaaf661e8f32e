package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oracleplane/oracleplane/internal/model"
)

// ListObjects queries dba_objects filtered server-side by owner, object
// type, object name, and (if set) a strict last-DDL-time cutoff, then
// fetches DDL for each surviving row via one GetDDL round trip per
// object.
func (c *Client) ListObjects(ctx context.Context, opts ListObjectsOptions) ([]model.Object, error) {
	if len(opts.Schemas) == 0 {
		return nil, fmt.Errorf("oracle: list objects: no schemas given")
	}

	query, args := buildObjectsQuery(opts)
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("oracle: list objects: %w", err)
	}
	defer rows.Close()

	type row struct {
		owner, name, typ string
		lastDDL          time.Time
	}
	var stubs []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.owner, &r.name, &r.typ, &r.lastDDL); err != nil {
			return nil, fmt.Errorf("oracle: list objects: %w", err)
		}
		stubs = append(stubs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("oracle: list objects: %w", err)
	}

	objects := make([]model.Object, 0, len(stubs))
	for _, r := range stubs {
		ddl, err := c.GetDDL(ctx, r.typ, r.name, r.owner)
		if err != nil {
			return nil, err
		}
		objects = append(objects, model.Object{
			Owner:       r.owner,
			ObjectName:  r.name,
			ObjectType:  r.typ,
			LastDDLTime: r.lastDDL,
			DDL:         &ddl,
		})
	}
	return objects, nil
}

// buildObjectsQuery assembles the dba_objects query and its bind
// arguments. Placeholders are positional (godror/OCI-style ":1", ":2", ...).
func buildObjectsQuery(opts ListObjectsOptions) (string, []any) {
	var b strings.Builder
	var args []any
	n := 0
	bind := func() string {
		n++
		return fmt.Sprintf(":%d", n)
	}

	b.WriteString("select owner, object_name, object_type, last_ddl_time from dba_objects where owner in (")
	for i, s := range opts.Schemas {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(bind())
		args = append(args, s)
	}
	b.WriteString(")")

	if opts.Cutoff != nil {
		b.WriteString(fmt.Sprintf(" and last_ddl_time > %s", bind()))
		args = append(args, *opts.Cutoff)
	}

	if len(opts.ExcludeObjectTypes) > 0 {
		b.WriteString(" and object_type not in (")
		for i, t := range opts.ExcludeObjectTypes {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(bind())
			args = append(args, t)
		}
		b.WriteString(")")
	}

	if len(opts.ExcludeObjectNames) > 0 {
		b.WriteString(" and object_name not in (")
		for i, nm := range opts.ExcludeObjectNames {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(bind())
			args = append(args, nm)
		}
		b.WriteString(")")
	}

	b.WriteString(" order by owner, object_name")
	return b.String(), args
}
