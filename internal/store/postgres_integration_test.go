// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

//go:build integration

package store_test

import (
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jancy-plugins/namath-provider/internal/cart"
	"github.com/jancy-plugins/namath-provider/internal/messaging"
	"github.com/jancy-plugins/namath-provider/internal/store"
)

func setupPostgresContainer() (*store.PostgresStore, func(), error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("namath_test"),
		postgres.WithUsername("namath"),
		postgres.WithPassword("namath"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		return nil, nil, err
	}
	if err := migrator.Up(); err != nil {
		return nil, nil, err
	}
	_ = migrator.Close()

	s, err := store.Open(ctx, connStr, nil)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		s.Close()
		_ = container.Terminate(ctx)
	}
	return s, cleanup, nil
}

var _ = Describe("PostgresStore", func() {
	var (
		s       *store.PostgresStore
		cleanup func()
		ctx     context.Context
	)

	BeforeEach(func() {
		var err error
		s, cleanup, err = setupPostgresContainer()
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	AfterEach(func() {
		cleanup()
	})

	Describe("Record and Find", func() {
		It("round-trips payload bytes unchanged", func() {
			payload := json.RawMessage(`{ "event" : "Jets",  "quantity": 2 }`)
			c := cart.New(cart.NewID(), payload)
			Expect(s.Record(ctx, c)).To(Succeed())

			got, found, err := s.Find(ctx, c.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect([]byte(got.Payload)).To(Equal([]byte(payload)))
			Expect(got.Approval).To(Equal(cart.ApprovalUnknown))
			Expect(got.IsWaiting).To(BeTrue())
		})

		It("returns the newest row for a duplicated id", func() {
			first := cart.New("dup", json.RawMessage(`{"n":1}`))
			second := cart.New("dup", json.RawMessage(`{"n":2}`))
			Expect(s.Record(ctx, first)).To(Succeed())
			Expect(s.Record(ctx, second)).To(Succeed())

			got, found, err := s.Find(ctx, "dup")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(string(got.Payload)).To(Equal(`{"n":2}`))

			n, err := s.Len(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
		})

		It("reports unknown ids as not found", func() {
			_, found, err := s.Find(ctx, "missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeFalse())
		})
	})

	Describe("Resolve", func() {
		It("marks the cart decided", func() {
			c := cart.New(cart.NewID(), json.RawMessage(`{}`))
			Expect(s.Record(ctx, c)).To(Succeed())

			got, found, err := s.Resolve(ctx, cart.Decision{
				CartID:         c.ID,
				Approval:       cart.ApprovalApproved,
				RespondingUser: messaging.DefaultRespondingUser,
				DecidedAt:      time.Now(),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(got.Approval).To(Equal(cart.ApprovalApproved))
			Expect(got.IsWaiting).To(BeFalse())
			Expect(got.RespondingUser).To(Equal(messaging.DefaultRespondingUser))
		})

		It("refuses a second decision", func() {
			c := cart.New(cart.NewID(), json.RawMessage(`{}`))
			Expect(s.Record(ctx, c)).To(Succeed())
			first := cart.Decision{
				CartID:         c.ID,
				Approval:       cart.ApprovalApproved,
				RespondingUser: messaging.DefaultRespondingUser,
				DecidedAt:      time.Now(),
			}
			_, _, err := s.Resolve(ctx, first)
			Expect(err).NotTo(HaveOccurred())

			second := first
			second.Approval = cart.ApprovalRejected
			second.RespondingUser = "mallory"
			_, found, err := s.Resolve(ctx, second)
			Expect(err).To(MatchError(cart.ErrAlreadyDecided))
			Expect(found).To(BeTrue())

			stored, _, err := s.Find(ctx, c.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Approval).To(Equal(cart.ApprovalApproved))
		})
	})

	Describe("Channel over Postgres", func() {
		It("delivers decisions for persisted carts", func() {
			ch, err := messaging.New(s, messaging.AutoApprover{}, messaging.WithSignalRecorder(s))
			Expect(err).NotTo(HaveOccurred())
			defer func() { _ = ch.Close(ctx) }()

			decided := make(chan cart.Decision, 1)
			sub := ch.Subscribe(func(_ context.Context, _ cart.Cart, d cart.Decision) {
				decided <- d
			})
			defer ch.Unsubscribe(sub)

			c := cart.New(cart.NewID(), json.RawMessage(`{"event":"Jets"}`))
			ok, err := ch.Send(ctx, "key", c, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			Eventually(decided).WithTimeout(5 * time.Second).Should(Receive(HaveField("CartID", c.ID)))

			found, err := ch.Bump(ctx, c.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
		})
	})
})
