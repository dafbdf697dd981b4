package persistence

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hdds-io/hdds/pkg/herrors"
)

const schema = `
CREATE TABLE IF NOT EXISTS samples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	topic TEXT NOT NULL,
	type_name TEXT NOT NULL,
	payload BLOB NOT NULL,
	timestamp_ns INTEGER NOT NULL,
	sequence INTEGER NOT NULL,
	source_guid BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_samples_topic ON samples(topic);
CREATE INDEX IF NOT EXISTS idx_samples_timestamp ON samples(timestamp_ns);
`

// SqlitePersistenceStore is the one concrete PersistenceStore HDDS ships,
// backed by database/sql over mattn/go-sqlite3. SQLite's single-writer
// model makes a multi-connection pool counterproductive, so the store
// caps the pool at one connection the way a single in-process Mutex
// would (cc-backend's repository.Connect does the same for its sqlite3
// driver).
type SqlitePersistenceStore struct {
	db *sql.DB
}

// OpenSqlite opens (and if necessary creates) a SQLite-backed store at
// path. Use ":memory:" for a throwaway store, e.g. in tests.
func OpenSqlite(path string) (*SqlitePersistenceStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, herrors.Wrap(herrors.KindConfig, "persistence.sqlite", "failed to open database", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, herrors.Wrap(herrors.KindConfig, "persistence.sqlite", "failed to initialize schema", err)
	}
	return &SqlitePersistenceStore{db: db}, nil
}

func (s *SqlitePersistenceStore) Close() error { return s.db.Close() }

func (s *SqlitePersistenceStore) Save(sample Sample) error {
	_, err := s.db.Exec(
		`INSERT INTO samples (topic, type_name, payload, timestamp_ns, sequence, source_guid)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sample.Topic, sample.TypeName, sample.Payload,
		int64(sample.TimestampNs), int64(sample.Sequence), sample.SourceGUID[:],
	)
	if err != nil {
		return herrors.Wrap(herrors.KindResourceExhausted, "persistence.sqlite", "save failed", err)
	}
	return nil
}

func (s *SqlitePersistenceStore) Load(topic string) ([]Sample, error) {
	rows, err := s.db.Query(
		`SELECT topic, type_name, payload, timestamp_ns, sequence, source_guid
		 FROM samples WHERE topic = ? ORDER BY timestamp_ns ASC`, topic)
	if err != nil {
		return nil, herrors.Wrap(herrors.KindTransportError, "persistence.sqlite", "load query failed", err)
	}
	defer rows.Close()
	return scanSamples(rows)
}

// QueryRange implements the glob rule directly in Go rather than in SQL:
// SQLite's LIKE has no notion of "exactly one path segment", so for a
// "prefix/*" glob the store lists every distinct topic, keeps the ones
// whose suffix after "prefix/" contains no further "/", and only then
// queries those topics by timestamp range. A literal "*" skips the topic
// filter entirely.
func (s *SqlitePersistenceStore) QueryRange(topicOrGlob string, startNs, endNs uint64) ([]Sample, error) {
	startI64, endI64 := saturateI64(startNs), saturateI64(endNs)

	switch {
	case topicOrGlob == "*":
		rows, err := s.db.Query(
			`SELECT topic, type_name, payload, timestamp_ns, sequence, source_guid
			 FROM samples WHERE timestamp_ns BETWEEN ? AND ? ORDER BY timestamp_ns ASC`,
			startI64, endI64)
		if err != nil {
			return nil, herrors.Wrap(herrors.KindTransportError, "persistence.sqlite", "query_range failed", err)
		}
		defer rows.Close()
		return scanSamples(rows)

	case strings.HasSuffix(topicOrGlob, "/*"):
		prefix := strings.TrimSuffix(topicOrGlob, "/*")
		topics, err := s.topicsUnderPrefix(prefix)
		if err != nil {
			return nil, err
		}
		if len(topics) == 0 {
			return nil, nil
		}
		return s.queryRangeForTopics(topics, startI64, endI64)

	default:
		rows, err := s.db.Query(
			`SELECT topic, type_name, payload, timestamp_ns, sequence, source_guid
			 FROM samples WHERE topic = ? AND timestamp_ns BETWEEN ? AND ? ORDER BY timestamp_ns ASC`,
			topicOrGlob, startI64, endI64)
		if err != nil {
			return nil, herrors.Wrap(herrors.KindTransportError, "persistence.sqlite", "query_range failed", err)
		}
		defer rows.Close()
		return scanSamples(rows)
	}
}

func (s *SqlitePersistenceStore) topicsUnderPrefix(prefix string) ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT topic FROM samples`)
	if err != nil {
		return nil, herrors.Wrap(herrors.KindTransportError, "persistence.sqlite", "topic listing failed", err)
	}
	defer rows.Close()

	var matched []string
	for rows.Next() {
		var topic string
		if err := rows.Scan(&topic); err != nil {
			return nil, herrors.Wrap(herrors.KindTransportError, "persistence.sqlite", "topic scan failed", err)
		}
		rest, ok := strings.CutPrefix(topic, prefix+"/")
		if ok && !strings.Contains(rest, "/") {
			matched = append(matched, topic)
		}
	}
	return matched, rows.Err()
}

func (s *SqlitePersistenceStore) queryRangeForTopics(topics []string, startI64, endI64 int64) ([]Sample, error) {
	placeholders := strings.Repeat("?,", len(topics))
	placeholders = strings.TrimSuffix(placeholders, ",")

	args := make([]any, 0, len(topics)+2)
	args = append(args, startI64, endI64)
	for _, t := range topics {
		args = append(args, t)
	}

	query := `SELECT topic, type_name, payload, timestamp_ns, sequence, source_guid
	          FROM samples WHERE timestamp_ns BETWEEN ? AND ? AND topic IN (` + placeholders + `)
	          ORDER BY timestamp_ns ASC`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, herrors.Wrap(herrors.KindTransportError, "persistence.sqlite", "query_range failed", err)
	}
	defer rows.Close()
	return scanSamples(rows)
}

func (s *SqlitePersistenceStore) ApplyRetention(topic string, keepCount uint64) error {
	_, err := s.db.Exec(
		`DELETE FROM samples WHERE topic = ? AND id NOT IN (
		   SELECT id FROM samples WHERE topic = ? ORDER BY timestamp_ns DESC LIMIT ?
		 )`, topic, topic, int64(keepCount))
	if err != nil {
		return herrors.Wrap(herrors.KindTransportError, "persistence.sqlite", "apply_retention failed", err)
	}
	return nil
}

func (s *SqlitePersistenceStore) ApplyRetentionPolicy(topic string, policy RetentionPolicy) error {
	if policy.IsNoop() {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return herrors.Wrap(herrors.KindTransportError, "persistence.sqlite", "apply_retention_policy begin failed", err)
	}
	defer tx.Rollback()

	if policy.KeepCount > 0 {
		if _, err := tx.Exec(
			`DELETE FROM samples WHERE topic = ? AND id NOT IN (
			   SELECT id FROM samples WHERE topic = ? ORDER BY timestamp_ns DESC LIMIT ?
			 )`, topic, topic, int64(policy.KeepCount)); err != nil {
			return herrors.Wrap(herrors.KindTransportError, "persistence.sqlite", "apply_retention_policy keep_count failed", err)
		}
	}

	if policy.MaxAge > 0 {
		cutoff := uint64(time.Now().UnixNano())
		age := uint64(policy.MaxAge.Nanoseconds())
		if age > cutoff {
			cutoff = 0
		} else {
			cutoff -= age
		}
		if _, err := tx.Exec(`DELETE FROM samples WHERE topic = ? AND timestamp_ns < ?`, topic, saturateI64(cutoff)); err != nil {
			return herrors.Wrap(herrors.KindTransportError, "persistence.sqlite", "apply_retention_policy max_age failed", err)
		}
	}

	if policy.MaxBytes > 0 {
		if err := deleteOverByteBudget(tx, topic, policy.MaxBytes); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return herrors.Wrap(herrors.KindTransportError, "persistence.sqlite", "apply_retention_policy commit failed", err)
	}
	return nil
}

// deleteOverByteBudget keeps the most recent samples whose cumulative
// payload size fits within maxBytes and deletes the rest, mirroring the
// original's newest-first accumulation.
func deleteOverByteBudget(tx *sql.Tx, topic string, maxBytes uint64) error {
	rows, err := tx.Query(
		`SELECT id, length(payload) FROM samples WHERE topic = ? ORDER BY timestamp_ns DESC`, topic)
	if err != nil {
		return herrors.Wrap(herrors.KindTransportError, "persistence.sqlite", "apply_retention_policy max_bytes scan failed", err)
	}

	var toDelete []int64
	var total uint64
	for rows.Next() {
		var id int64
		var length int64
		if err := rows.Scan(&id, &length); err != nil {
			rows.Close()
			return herrors.Wrap(herrors.KindTransportError, "persistence.sqlite", "apply_retention_policy max_bytes row failed", err)
		}
		if length < 0 {
			length = 0
		}
		if total+uint64(length) <= maxBytes {
			total += uint64(length)
		} else {
			toDelete = append(toDelete, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return herrors.Wrap(herrors.KindTransportError, "persistence.sqlite", "apply_retention_policy max_bytes iteration failed", err)
	}
	rows.Close()

	for _, id := range toDelete {
		if _, err := tx.Exec(`DELETE FROM samples WHERE id = ?`, id); err != nil {
			return herrors.Wrap(herrors.KindTransportError, "persistence.sqlite", "apply_retention_policy max_bytes delete failed", err)
		}
	}
	return nil
}

func (s *SqlitePersistenceStore) Count() (uint64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM samples`).Scan(&n); err != nil {
		return 0, herrors.Wrap(herrors.KindTransportError, "persistence.sqlite", "count failed", err)
	}
	return uint64(n), nil
}

func (s *SqlitePersistenceStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM samples`); err != nil {
		return herrors.Wrap(herrors.KindTransportError, "persistence.sqlite", "clear failed", err)
	}
	return nil
}

func scanSamples(rows *sql.Rows) ([]Sample, error) {
	var samples []Sample
	for rows.Next() {
		var s Sample
		var guidBlob []byte
		var timestampNs, sequence int64
		if err := rows.Scan(&s.Topic, &s.TypeName, &s.Payload, &timestampNs, &sequence, &guidBlob); err != nil {
			return nil, herrors.Wrap(herrors.KindTransportError, "persistence.sqlite", "row scan failed", err)
		}
		s.TimestampNs = uint64(timestampNs)
		s.Sequence = uint64(sequence)
		copy(s.SourceGUID[:], guidBlob)
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, herrors.Wrap(herrors.KindTransportError, "persistence.sqlite", "row iteration failed", err)
	}
	return samples, nil
}

// saturateI64 clamps a uint64 nanosecond value to int64's range, since
// SQLite columns here are signed (u64::MAX would wrap negative).
func saturateI64(v uint64) int64 {
	if v > uint64(1<<63-1) {
		return 1<<63 - 1
	}
	return int64(v)
}
