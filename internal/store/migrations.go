package store

type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of schema migrations. Append only.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create observations and tool usages",
		SQL: `
			CREATE TABLE observations (
				id          TEXT PRIMARY KEY,
				agent       TEXT NOT NULL,
				prompt      TEXT NOT NULL DEFAULT '',
				status      TEXT NOT NULL,
				error       TEXT NOT NULL DEFAULT '',
				started_at  TEXT NOT NULL,
				ended_at    TEXT NOT NULL,
				elapsed_ms  INTEGER NOT NULL DEFAULT 0,
				steps       TEXT
			);

			CREATE INDEX idx_observations_agent ON observations (agent, started_at);

			CREATE TABLE tool_usages (
				id              INTEGER PRIMARY KEY AUTOINCREMENT,
				observation_id  TEXT NOT NULL REFERENCES observations(id) ON DELETE CASCADE,
				tool            TEXT NOT NULL,
				input           TEXT NOT NULL DEFAULT '',
				output          TEXT NOT NULL DEFAULT '',
				elapsed_ms      INTEGER NOT NULL DEFAULT 0,
				used_at         TEXT NOT NULL
			);

			CREATE INDEX idx_tool_usages_observation ON tool_usages (observation_id, id);
			CREATE INDEX idx_tool_usages_tool ON tool_usages (tool);
		`,
	},
}
