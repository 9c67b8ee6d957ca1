package sqlite

// Every collection shares one table. body holds the record as JSON; seq
// preserves insertion order; rid is the string form of the record's id
// field under the collection's current id field, empty when absent.
const createRecords = `CREATE TABLE records (
    collection TEXT NOT NULL,
    seq INTEGER NOT NULL,
    rid TEXT NOT NULL,
    body TEXT NOT NULL,
    PRIMARY KEY (collection, seq)
);`

const idxRecordsRID = `CREATE INDEX idx_records_rid ON records(collection, rid);`

var schemaDDL = []string{createRecords, idxRecordsRID}
