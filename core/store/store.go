// Package store keeps the history of finished training runs in badger.
package store

import (
	"encoding/json"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"gradlab/common"
	"gradlab/core/ml"
	"gradlab/core/session"
)

const runPrefix = "run/"

var ErrNotFound = errors.New("run not found")

type Config struct {
	Path     string
	InMemory bool
}

type RunRecord struct {
	ID                  string                  `json:"id"`
	Request             session.TrainingRequest `json:"request"`
	TimeToTrainMs       float64                 `json:"timeToTrainMs"`
	ClassificationError float64                 `json:"classificationError"`
	FinalLoss           float64                 `json:"finalLoss"`
	NetworkDimensions   []int                   `json:"networkDimensions"`
	Matrix              ml.ConfusionMatrix      `json:"matrix"`
	FinishedAt          time.Time               `json:"finishedAt"`
}

type Store struct {
	db  *badger.DB
	log common.Logger
}

func Open(cfg *Config, log common.Logger) (*Store, error) {
	if log == nil {
		log = common.GetLogger(common.MODULE_STORE)
	}
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open run store")
	}
	log.Infof("run store opened (path=%q, in memory=%v)", cfg.Path, cfg.InMemory)
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record implements controller.Recorder.
func (s *Store) Record(req session.TrainingRequest, res *ml.ClassifiedTrainingResult, matrix ml.ConfusionMatrix) error {
	rec := &RunRecord{
		ID:                  uuid.NewString(),
		Request:             req,
		TimeToTrainMs:       res.TimeToTrainMs,
		ClassificationError: res.ClassificationError,
		FinalLoss:           res.FinalLoss(),
		NetworkDimensions:   res.NetworkDimensions,
		Matrix:              matrix,
		FinishedAt:          time.Now().UTC(),
	}
	return s.Save(rec)
}

func (s *Store) Save(rec *RunRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encode run")
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(runPrefix+rec.ID), data)
	})
	if err != nil {
		return errors.Wrapf(err, "save run %s", rec.ID)
	}
	s.log.Debugf("saved run %s", rec.ID)
	return nil
}

func (s *Store) Get(id string) (*RunRecord, error) {
	var rec RunRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(runPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.Wrap(ErrNotFound, id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get run %s", id)
	}
	return &rec, nil
}

// List returns every run, newest first.
func (s *Store) List() ([]*RunRecord, error) {
	var runs []*RunRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec RunRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return err
				}
				runs = append(runs, &rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].FinishedAt.After(runs[j].FinishedAt)
	})
	return runs, nil
}
