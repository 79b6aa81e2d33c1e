package dummydb

import (
	"sync"

	"github.com/nxuacademy/backend/core/billing"
	"github.com/nxuacademy/backend/core/waitlist"
)

// DB is an in-memory store for tests and local runs. Tables hold values, not
// pointers, so a transaction snapshot is a plain map copy.
type DB struct {
	mu   sync.RWMutex
	txMu sync.Mutex // serializes Atomically blocks

	students    map[int]billing.Student
	enrollments map[int]billing.Enrollment
	plans       map[int]billing.PaymentPlan
	payments    map[int]billing.Payment
	waitlist    map[int]waitlist.Entry

	studentPK    int
	enrollmentPK int
	planPK       int
	paymentPK    int
	entryPK      int
}

func Open() (*DB, error) {
	db := &DB{
		students:    make(map[int]billing.Student),
		enrollments: make(map[int]billing.Enrollment),
		plans:       make(map[int]billing.PaymentPlan),
		payments:    make(map[int]billing.Payment),
		waitlist:    make(map[int]waitlist.Entry),
	}
	return db, nil
}

type snapshot struct {
	students    map[int]billing.Student
	enrollments map[int]billing.Enrollment
	plans       map[int]billing.PaymentPlan
	payments    map[int]billing.Payment
	waitlist    map[int]waitlist.Entry

	studentPK    int
	enrollmentPK int
	planPK       int
	paymentPK    int
	entryPK      int
}

func copyTable[T any](table map[int]T) map[int]T {
	cp := make(map[int]T, len(table))
	for id, row := range table {
		cp[id] = row
	}
	return cp
}

func (db *DB) snapshot() snapshot {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return snapshot{
		students:     copyTable(db.students),
		enrollments:  copyTable(db.enrollments),
		plans:        copyTable(db.plans),
		payments:     copyTable(db.payments),
		waitlist:     copyTable(db.waitlist),
		studentPK:    db.studentPK,
		enrollmentPK: db.enrollmentPK,
		planPK:       db.planPK,
		paymentPK:    db.paymentPK,
		entryPK:      db.entryPK,
	}
}

func (db *DB) restore(snap snapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.students = snap.students
	db.enrollments = snap.enrollments
	db.plans = snap.plans
	db.payments = snap.payments
	db.waitlist = snap.waitlist
	db.studentPK = snap.studentPK
	db.enrollmentPK = snap.enrollmentPK
	db.planPK = snap.planPK
	db.paymentPK = snap.paymentPK
	db.entryPK = snap.entryPK
}
