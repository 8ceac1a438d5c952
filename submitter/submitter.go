// Package submitter owns the bounded queue of nonce submissions and their
// delivery to the upstream. It follows a ledger-then-retry design: a job is
// durably recorded before the first delivery attempt and removed from the
// ledger when the upstream accepts it, when it goes stale, or when the
// queue is full at enqueue time. Jobs left in the ledger by a crash stay in
// the file; the miner does not read them back or resubmit them at startup.
package submitter

import (
	"context"
	"encoding/binary"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/signum-network/gopoc-miner/config"
	"github.com/signum-network/gopoc-miner/httpupstream"
	"github.com/signum-network/gopoc-miner/metrics"
	"github.com/signum-network/gopoc-miner/persist"
	"github.com/signum-network/gopoc-miner/poc"
)

// ledgerBucket is the bbolt bucket the durable submission ledger lives in.
var ledgerBucket = []byte("PendingSubmissions")

// LedgerMetadata is the header every submission ledger file is opened with.
var LedgerMetadata = persist.Metadata{Header: "gopoc-miner submission ledger", Version: "1.0"}

// retryDelay is the pause between delivery attempts for one job. There is
// no attempt cap: a job is retried until the upstream accepts it or it goes
// stale, per the submission ledger's persistence-until-delivered contract.
// It is a var, not a const, so tests can shorten it rather than waiting out
// real delays.
var retryDelay = 2 * time.Second

// Submitter accepts candidates, persists them, and drives them through
// httpupstream.Transport until accepted or abandoned as stale. Besides
// those two outcomes, a job also leaves the ledger when TryEnqueue drops it
// because the queue is full.
type Submitter struct {
	transport httpupstream.Transport
	cfg       config.Settings
	metrics   *metrics.Metrics
	log       *persist.Logger
	db        *persist.BoltDatabase

	queue chan poc.SubmissionJob

	currentHeight atomic.Uint64
	puzzleTarget  atomic.Uint64
}

// New builds a Submitter. db may be nil, in which case jobs are not
// durably persisted (acceptable for benchmark/test runs, never for a real
// miner per the ledger's crash-safety purpose).
func New(transport httpupstream.Transport, cfg config.Settings, m *metrics.Metrics, log *persist.Logger, db *persist.BoltDatabase) *Submitter {
	return &Submitter{
		transport: transport,
		cfg:       cfg,
		metrics:   m,
		log:       log,
		db:        db,
		queue:     make(chan poc.SubmissionJob, config.SubmissionQueueCapacity),
	}
}

// SetRound updates the height and target the staleness check uses. The
// Miner Controller calls this once per accepted puzzle.
func (s *Submitter) SetRound(height, effectiveTarget uint64) {
	s.currentHeight.Store(height)
	s.puzzleTarget.Store(effectiveTarget)
}

// TryEnqueue adds a job to the queue without blocking. It returns false and
// logs a drop if the queue is at capacity, per §4.7's "drop rather than
// block the caller" rule.
func (s *Submitter) TryEnqueue(job poc.SubmissionJob) bool {
	if s.db != nil {
		if err := s.persistJob(job); err != nil && s.log != nil {
			s.log.Println("submitter: failed to persist job before enqueue:", err)
		}
	}
	select {
	case s.queue <- job:
		return true
	default:
		if s.log != nil {
			s.log.Println("submitter: queue full, dropping candidate for account", job.Candidate.AccountID)
		}
		if s.db != nil {
			s.removeJob(job)
		}
		return false
	}
}

// Run drains the queue until ctx is cancelled, submitting each job in turn.
// Submissions are processed one at a time deliberately: the upstream is a
// single endpoint and ordering submissions avoids racing two attempts for
// the same account against each other.
func (s *Submitter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job := <-s.queue:
			s.process(ctx, job)
		}
	}
}

// process drives job to one of its only two legal outcomes: accepted by the
// upstream, or abandoned because a new round made it stale. Neither a
// transport error nor any number of attempts removes the job from the
// ledger on its own; process keeps retrying every retryDelay until one of
// those two outcomes happens or ctx is cancelled. On cancellation the job is
// left in the ledger, where Pending() can read it back.
func (s *Submitter) process(ctx context.Context, job poc.SubmissionJob) {
	secret := s.secretFor(job.Candidate.AccountID)
	req := httpupstream.SubmitNonceRequest{
		AccountID:    job.Candidate.AccountID,
		Nonce:        job.Candidate.Nonce,
		Deadline:     job.Candidate.Deadline,
		BlockHeight:  job.Candidate.Height,
		SecretPhrase: secret,
		Hostname:     "gopoc-miner",
	}

	for {
		if job.Stale(s.currentHeight.Load(), s.puzzleTarget.Load()) {
			if s.log != nil {
				s.log.Println("submitter: abandoning stale job for account", job.Candidate.AccountID, "height", job.Candidate.Height)
			}
			s.removeJob(job)
			return
		}

		_, err := s.transport.SubmitNonce(ctx, req)
		job.Attempts++
		job.LastError = err

		if err == nil {
			if s.metrics != nil {
				s.metrics.RecordSubmissionSuccess(job.Candidate.AccountID, job.Candidate.Deadline)
			}
			s.removeJob(job)
			return
		}

		if s.metrics != nil {
			s.metrics.RecordSubmissionFailure()
		}
		if s.log != nil {
			s.log.Println("submitter: attempt", job.Attempts, "failed for account", job.Candidate.AccountID, "retrying:", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
	}
}

func (s *Submitter) secretFor(accountID uint64) string {
	for _, a := range s.cfg.Accounts {
		if a.AccountID == accountID {
			return a.SecretPhrase
		}
	}
	return ""
}

// ledgerKey encodes (height, accountID, nonce) big-endian so bbolt's byte
// ordering keeps a round's jobs contiguous, matching the source's use of
// sortable composite keys for its own on-disk indices.
func ledgerKey(c poc.Candidate) []byte {
	key := make([]byte, 24)
	binary.BigEndian.PutUint64(key[0:8], c.Height)
	binary.BigEndian.PutUint64(key[8:16], c.AccountID)
	binary.BigEndian.PutUint64(key[16:24], c.Nonce)
	return key
}

func (s *Submitter) persistJob(job poc.SubmissionJob) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(ledgerBucket)
		if err != nil {
			return err
		}
		return bucket.Put(ledgerKey(job.Candidate), encodeJob(job))
	})
}

func (s *Submitter) removeJob(job poc.SubmissionJob) {
	if s.db == nil {
		return
	}
	_ = s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(ledgerBucket)
		if bucket == nil {
			return nil
		}
		return bucket.Delete(ledgerKey(job.Candidate))
	})
}

// Pending returns every job left in the ledger. It does not enqueue or
// submit them, and cmd/gopoc-miner does not call it at startup.
func (s *Submitter) Pending() ([]poc.SubmissionJob, error) {
	var jobs []poc.SubmissionJob
	if s.db == nil {
		return jobs, nil
	}
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(ledgerBucket)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, v []byte) error {
			jobs = append(jobs, decodeJob(v))
			return nil
		})
	})
	return jobs, err
}

// encodeJob serializes the fields needed to resume a job after restart.
// Attempts and LastError are not persisted: a job decoded from the ledger
// starts with Attempts at zero and no LastError.
func encodeJob(job poc.SubmissionJob) []byte {
	buf := make([]byte, 40)
	binary.BigEndian.PutUint64(buf[0:8], job.Candidate.Height)
	binary.BigEndian.PutUint64(buf[8:16], job.Candidate.AccountID)
	binary.BigEndian.PutUint64(buf[16:24], job.Candidate.Nonce)
	binary.BigEndian.PutUint64(buf[24:32], job.Candidate.DeadlineRaw)
	binary.BigEndian.PutUint64(buf[32:40], job.Candidate.Deadline)
	return buf
}

func decodeJob(buf []byte) poc.SubmissionJob {
	if len(buf) < 40 {
		return poc.SubmissionJob{}
	}
	return poc.SubmissionJob{Candidate: poc.Candidate{
		Height:      binary.BigEndian.Uint64(buf[0:8]),
		AccountID:   binary.BigEndian.Uint64(buf[8:16]),
		Nonce:       binary.BigEndian.Uint64(buf[16:24]),
		DeadlineRaw: binary.BigEndian.Uint64(buf[24:32]),
		Deadline:    binary.BigEndian.Uint64(buf[32:40]),
	}}
}
