package swapdb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lightninglabs/beamswap/swapparams"
	"go.etcd.io/bbolt"
)

var (
	// dbFileName is the default file name of the bolt swap database.
	dbFileName = "swaps.db"

	// swapsBucketKey is a bucket that contains all swaps, pending or
	// finished. It is keyed by the swap id and leads to a nested
	// sub-bucket that houses the swap.
	//
	// maps: swapID -> swapBucket
	swapsBucketKey = []byte("swaps")

	// paramsBucketKey is the sub-bucket of a swap bucket that holds its
	// parameters.
	//
	// path: swapsBucket -> swapBucket[id] -> paramsBucket
	//
	// maps: kind || slot -> type || value
	paramsBucketKey = []byte("params")

	// createdKey stores the unix nano time the swap was stored at.
	//
	// path: swapsBucket -> swapBucket[id] -> createdKey
	createdKey = []byte("created")

	byteOrder = binary.BigEndian

	// DefaultBoltTimeout is how long opening the database waits for the
	// file lock held by another process.
	DefaultBoltTimeout = 10 * time.Second
)

// fileExists returns true if the file exists, and false otherwise.
func fileExists(path string) bool {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}

	return true
}

// boltSwapStore stores swap data in boltdb.
type boltSwapStore struct {
	db *bbolt.DB
}

// A compile-time flag to ensure that boltSwapStore implements the SwapStore
// interface.
var _ SwapStore = (*boltSwapStore)(nil)

// NewBoltSwapStore creates a new bolt backed swap store in the given
// directory.
func NewBoltSwapStore(dbPath string) (*boltSwapStore, error) {
	// If the target path for the swap store doesn't exist, then we'll
	// create it now before we proceed.
	if !fileExists(dbPath) {
		if err := os.MkdirAll(dbPath, 0700); err != nil {
			return nil, err
		}
	}

	path := filepath.Join(dbPath, dbFileName)
	bdb, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: DefaultBoltTimeout,
	})
	if err != nil {
		return nil, err
	}

	// We'll create all the buckets we need if this is the first time we're
	// starting up. If they already exist, then these calls will be noops.
	err = bdb.Update(func(tx *bbolt.Tx) error {
		// A present meta bucket means the database is initialized and
		// carries its version.
		if tx.Bucket(metaBucketKey) == nil {
			log.Infof("Initializing new database with version %v",
				latestDBVersion)

			if err := setDBVersion(tx, latestDBVersion); err != nil {
				return err
			}
		}

		_, err := tx.CreateBucketIfNotExists(swapsBucketKey)
		return err
	})
	if err != nil {
		_ = bdb.Close()
		return nil, err
	}

	// Finally, before we start, we'll sync the DB versions to pick up any
	// possible DB migrations.
	if err := syncVersions(bdb); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	return &boltSwapStore{
		db: bdb,
	}, nil
}

// CreateSwap stores a new swap.
//
// NOTE: Part of the SwapStore interface.
func (s *boltSwapStore) CreateSwap(_ context.Context,
	params *swapparams.Store) error {

	id := params.ID()

	return s.db.Update(func(tx *bbolt.Tx) error {
		rootBucket := tx.Bucket(swapsBucketKey)
		if rootBucket == nil {
			return errors.New("bucket does not exist")
		}

		if rootBucket.Bucket(id[:]) != nil {
			return fmt.Errorf("%w: %v", ErrSwapExists, id)
		}

		swapBucket, err := rootBucket.CreateBucket(id[:])
		if err != nil {
			return err
		}

		var created [8]byte
		byteOrder.PutUint64(created[:], uint64(time.Now().UnixNano()))
		if err := swapBucket.Put(createdKey, created[:]); err != nil {
			return err
		}

		return putParams(swapBucket, params)
	})
}

// PersistSwap replaces the stored parameters of an existing swap.
//
// NOTE: Part of the SwapStore interface.
func (s *boltSwapStore) PersistSwap(_ context.Context,
	params *swapparams.Store) error {

	id := params.ID()

	return s.db.Update(func(tx *bbolt.Tx) error {
		rootBucket := tx.Bucket(swapsBucketKey)
		if rootBucket == nil {
			return errors.New("bucket does not exist")
		}

		swapBucket := rootBucket.Bucket(id[:])
		if swapBucket == nil {
			return fmt.Errorf("%w: %v", ErrSwapNotFound, id)
		}

		// Parameters can be cleared, so the stored set is rewritten
		// as a whole.
		if swapBucket.Bucket(paramsBucketKey) != nil {
			err := swapBucket.DeleteBucket(paramsBucketKey)
			if err != nil {
				return err
			}
		}

		return putParams(swapBucket, params)
	})
}

// LoadSwap returns the parameters of one swap.
//
// NOTE: Part of the SwapStore interface.
func (s *boltSwapStore) LoadSwap(_ context.Context,
	id swapparams.TxID) (*swapparams.Store, error) {

	var params *swapparams.Store
	err := s.db.View(func(tx *bbolt.Tx) error {
		rootBucket := tx.Bucket(swapsBucketKey)
		if rootBucket == nil {
			return errors.New("bucket does not exist")
		}

		swapBucket := rootBucket.Bucket(id[:])
		if swapBucket == nil {
			return fmt.Errorf("%w: %v", ErrSwapNotFound, id)
		}

		var err error
		params, err = readParams(id, swapBucket)
		return err
	})
	if err != nil {
		return nil, err
	}

	return params, nil
}

// FetchSwaps returns all stored swaps.
//
// NOTE: Part of the SwapStore interface.
func (s *boltSwapStore) FetchSwaps(_ context.Context) ([]*swapparams.Store,
	error) {

	var swaps []*swapparams.Store
	err := s.db.View(func(tx *bbolt.Tx) error {
		rootBucket := tx.Bucket(swapsBucketKey)
		if rootBucket == nil {
			return errors.New("bucket does not exist")
		}

		return rootBucket.ForEach(func(k, v []byte) error {
			// Only nested buckets are swaps.
			if v != nil {
				return nil
			}

			id, err := swapparams.TxIDFromBytes(k)
			if err != nil {
				return err
			}

			params, err := readParams(id, rootBucket.Bucket(k))
			if err != nil {
				return fmt.Errorf("swap %v: %w", id, err)
			}
			swaps = append(swaps, params)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return swaps, nil
}

// DeleteSwap removes a swap.
//
// NOTE: Part of the SwapStore interface.
func (s *boltSwapStore) DeleteSwap(_ context.Context,
	id swapparams.TxID) error {

	return s.db.Update(func(tx *bbolt.Tx) error {
		rootBucket := tx.Bucket(swapsBucketKey)
		if rootBucket == nil {
			return errors.New("bucket does not exist")
		}

		err := rootBucket.DeleteBucket(id[:])
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return fmt.Errorf("%w: %v", ErrSwapNotFound, id)
		}

		return err
	})
}

// Close closes the underlying database.
//
// NOTE: Part of the SwapStore interface.
func (s *boltSwapStore) Close() error {
	return s.db.Close()
}

// putParams writes all parameters into a fresh params bucket.
func putParams(swapBucket *bbolt.Bucket, params *swapparams.Store) error {
	paramsBucket, err := swapBucket.CreateBucket(paramsBucketKey)
	if err != nil {
		return err
	}

	for _, p := range params.Params() {
		err := paramsBucket.Put(paramKey(p), paramValue(p))
		if err != nil {
			return err
		}
	}

	return nil
}

// readParams restores the parameter store of a swap bucket.
func readParams(id swapparams.TxID,
	swapBucket *bbolt.Bucket) (*swapparams.Store, error) {

	paramsBucket := swapBucket.Bucket(paramsBucketKey)
	if paramsBucket == nil {
		return nil, errors.New("params bucket not found")
	}

	var params []swapparams.Param
	err := paramsBucket.ForEach(func(k, v []byte) error {
		p, err := decodeParam(k, v)

		params, err = appendParam(params, p, err)
		return err
	})
	if err != nil {
		return nil, err
	}

	return swapparams.NewStoreFromParams(id, params)
}
