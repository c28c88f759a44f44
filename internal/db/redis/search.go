package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/ragd/internal/db"
)

// distanceField is the name both servers give the KNN distance of the "vector" field.
const distanceField = "__vector_score"

const indexSuffix = ":idx"

// SearchKNN runs FT.SEARCH KNN over the collection index and returns raw cosine
// distances, nearest first.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(knnArgs(s.indexName(q.Collection), q)...).Build()
	reply, err := s.do(ctx, cmd).ToArray()
	switch {
	case err == nil:
	case isRedisErr(err, "unknown index name", "no such index"):
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%w: %s", db.ErrCollectionNotFound, q.Collection)}
	default:
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	res, err := decodeSearchReply(reply)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return res, nil
}

func knnArgs(index string, q *db.KNNQuery) []string {
	k := strconv.Itoa(q.K)
	return []string{
		index,
		"*=>[KNN " + k + " @vector $vec]",
		"RETURN", "3", db.FieldContent, db.FieldMetadata, distanceField,
		"LIMIT", "0", k,
		"PARAMS", "2", "vec", encodeFloat32(q.Vector),
		"DIALECT", "2",
	}
}

// ListCollections returns the collections behind "<prefix><name>:idx" indexes, sorted.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.do(ctx, s.b().Arbitrary("FT._LIST").Build()).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpList, Err: err}
	}

	out := make([]string, 0, len(names))
	for _, name := range names {
		rest, ok := strings.CutPrefix(name, s.prefix)
		if !ok {
			continue
		}
		if coll, ok := strings.CutSuffix(rest, indexSuffix); ok && coll != "" {
			out = append(out, coll)
		}
	}
	slices.Sort(out)
	return out, nil
}

// decodeSearchReply reads [total, key, [field, value, ...], key, [...], ...].
// Hits without a parseable distance are dropped.
func decodeSearchReply(reply []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(reply) == 0 {
		return &db.SearchResult{}, nil
	}
	total, err := reply[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("decode total: %w", err)
	}

	res := &db.SearchResult{Total: int(total)}
	for i := 1; i+1 < len(reply); i += 2 {
		key, err := reply[i].ToString()
		if err != nil {
			continue
		}
		pairs, err := reply[i+1].ToArray()
		if err != nil {
			continue
		}
		fields := fieldMap(pairs)

		d, err := strconv.ParseFloat(fields[distanceField], 64)
		if err != nil {
			continue
		}
		delete(fields, distanceField)
		res.Entries = append(res.Entries, db.SearchEntry{Key: key, Distance: d, Fields: fields})
	}

	// valkey-search has no SORTBY, so KNN hits may come back unordered.
	slices.SortStableFunc(res.Entries, func(a, b db.SearchEntry) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	return res, nil
}

func fieldMap(pairs []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(pairs)/2)
	for j := 0; j+1 < len(pairs); j += 2 {
		name, nerr := pairs[j].ToString()
		value, verr := pairs[j+1].ToString()
		if nerr == nil && verr == nil {
			m[name] = value
		}
	}
	return m
}

// encodeFloat32 packs v as little-endian FLOAT32, the layout FT.SEARCH expects for PARAMS blobs.
func encodeFloat32(v []float32) string {
	buf := make([]byte, 0, len(v)*4)
	for _, f := range v {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return string(buf)
}
