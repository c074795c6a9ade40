/*
Package variable provides typed values and the variable pool shared by
nodes during a workflow run.

# Segments

A Segment is an immutable typed value. Construct one with Build, which
infers the type, or NewSegmentOfType, which rejects values that do not
conform:

	seg, err := variable.NewSegmentOfType(variable.TypeInteger, 42)
	seg.Text()     // "42"
	seg.Markdown() // "42"

Secret segments render obfuscated in Log and Markdown forms.

# Pool

A Pool maps selectors ([node id, variable name, ...nested keys]) to
segments. Reads never fail: absent selectors yield None.

	pool, _ := variable.NewPool(
	    variable.WithSystemVariables(variable.SystemVariables{UserID: "u-1"}),
	    variable.WithUserInputs(map[string]any{"query": "hello"}),
	)
	pool.Get(variable.Selector{"sys", "user_id"}).Text() // "u-1"

Nodes write their outputs through Commit, which converts every value
before taking the write lock so a failed conversion leaves the pool
unchanged.

# Snapshots

Pool.Snapshot produces a versioned, tagged document that RestorePool
turns back into an equivalent pool. Secrets are stored in plaintext
unless a Sealer is supplied with WithSealer:

	box, _ := variable.NewSecretBox(key)
	snap, _ := pool.Snapshot(variable.WithSealer(box))

Integral numbers nested inside object values decode as integers.
*/
package variable
