// Package storagetest holds the behavior every storage.Driver must share,
// written once as ginkgo specs and run by each backend's suite.
package storagetest

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memories/pkg/storage"
)

// DescribeDriver registers the conformance specs for a backend. newDriver is
// called before each spec and must return an empty driver; the driver is
// closed after each spec.
func DescribeDriver(name string, newDriver func() storage.Driver) bool {
	return Describe(name+" conformance", func() {
		var (
			ctx    context.Context
			driver storage.Driver
		)

		meta := func(agent string, deleted bool) storage.Metadata {
			return storage.Metadata{
				"agent":              agent,
				"project":            "memories",
				"global":             false,
				"decay_policy":       "stable",
				"created_at":         "2026-01-01T00:00:00Z",
				"last_reinforced_at": "",
				"deleted":            deleted,
			}
		}

		BeforeEach(func() {
			ctx = context.Background()
			driver = nil
			driver = newDriver()
		})

		AfterEach(func() {
			// newDriver may skip before a driver exists
			if driver != nil {
				Expect(driver.Close()).To(Succeed())
			}
		})

		Describe("Store and Get", func() {
			It("round-trips content and metadata", func() {
				Expect(driver.Store(ctx, "11111111-1111-4111-8111-111111111111", "prefers tabs", meta("alice", false))).To(Succeed())

				rec, err := driver.Get(ctx, "11111111-1111-4111-8111-111111111111")
				Expect(err).NotTo(HaveOccurred())
				Expect(rec.ID).To(Equal("11111111-1111-4111-8111-111111111111"))
				Expect(rec.Content).To(Equal("prefers tabs"))
				Expect(rec.Metadata.String("agent")).To(Equal("alice"))
				Expect(rec.Metadata.String("created_at")).To(Equal("2026-01-01T00:00:00Z"))
				Expect(rec.Metadata.String("last_reinforced_at")).To(BeEmpty())
				Expect(rec.Metadata.Bool("deleted")).To(BeFalse())
				Expect(rec.Metadata.Bool("global")).To(BeFalse())
			})

			It("returns ErrNotFound for unknown ids", func() {
				_, err := driver.Get(ctx, "22222222-2222-4222-8222-222222222222")
				Expect(err).To(MatchError(storage.ErrNotFound))
			})
		})

		Describe("UpdateMetadata", func() {
			It("merges without dropping unmentioned keys", func() {
				Expect(driver.Store(ctx, "11111111-1111-4111-8111-111111111111", "prefers tabs", meta("alice", false))).To(Succeed())

				Expect(driver.UpdateMetadata(ctx, "11111111-1111-4111-8111-111111111111", storage.Metadata{"deleted": true})).To(Succeed())

				rec, err := driver.Get(ctx, "11111111-1111-4111-8111-111111111111")
				Expect(err).NotTo(HaveOccurred())
				Expect(rec.Metadata.Bool("deleted")).To(BeTrue())
				Expect(rec.Metadata.String("agent")).To(Equal("alice"))
				Expect(rec.Metadata.String("decay_policy")).To(Equal("stable"))
				Expect(rec.Content).To(Equal("prefers tabs"))
			})

			It("returns ErrNotFound for unknown ids", func() {
				err := driver.UpdateMetadata(ctx, "22222222-2222-4222-8222-222222222222", storage.Metadata{"deleted": true})
				Expect(err).To(MatchError(storage.ErrNotFound))
			})
		})

		Describe("Search", func() {
			BeforeEach(func() {
				Expect(driver.Store(ctx, "11111111-1111-4111-8111-111111111111", "run database migrations before deploy", meta("alice", false))).To(Succeed())
				Expect(driver.Store(ctx, "33333333-3333-4333-8333-333333333333", "the cat sat on the mat", meta("alice", false))).To(Succeed())
				Expect(driver.Store(ctx, "44444444-4444-4444-8444-444444444444", "database backups run nightly", meta("bob", false))).To(Succeed())
				Expect(driver.Store(ctx, "55555555-5555-4555-8555-555555555555", "database password rotated", meta("alice", true))).To(Succeed())
			})

			It("ranks the closest record first", func() {
				matches, err := driver.Search(ctx, "run database migrations before deploy", 10, storage.Filter{"deleted": false})
				Expect(err).NotTo(HaveOccurred())
				Expect(matches).NotTo(BeEmpty())
				Expect(matches[0].ID).To(Equal("11111111-1111-4111-8111-111111111111"))

				for i := 1; i < len(matches); i++ {
					Expect(matches[i].Distance).To(BeNumerically(">=", matches[i-1].Distance))
				}
			})

			It("applies every filter key", func() {
				matches, err := driver.Search(ctx, "database", 10, storage.Filter{"deleted": false, "agent": "alice"})
				Expect(err).NotTo(HaveOccurred())

				ids := make([]string, 0, len(matches))
				for _, m := range matches {
					ids = append(ids, m.ID)
					Expect(m.Metadata.String("agent")).To(Equal("alice"))
					Expect(m.Metadata.Bool("deleted")).To(BeFalse())
				}
				Expect(ids).To(ConsistOf(
					"11111111-1111-4111-8111-111111111111",
					"33333333-3333-4333-8333-333333333333",
				))
			})

			It("respects the limit", func() {
				matches, err := driver.Search(ctx, "database", 2, storage.Filter{})
				Expect(err).NotTo(HaveOccurred())
				Expect(matches).To(HaveLen(2))
			})

			It("returns content alongside metadata", func() {
				matches, err := driver.Search(ctx, "cat", 10, storage.Filter{"agent": "alice", "deleted": false})
				Expect(err).NotTo(HaveOccurred())
				Expect(matches).NotTo(BeEmpty())

				contents := make([]string, 0, len(matches))
				for _, m := range matches {
					contents = append(contents, m.Content)
				}
				Expect(contents).To(ContainElement("the cat sat on the mat"))
			})
		})

		Describe("Delete and Count", func() {
			It("removes records permanently", func() {
				Expect(driver.Store(ctx, "11111111-1111-4111-8111-111111111111", "a", meta("alice", false))).To(Succeed())
				Expect(driver.Store(ctx, "33333333-3333-4333-8333-333333333333", "b", meta("alice", false))).To(Succeed())

				n, err := driver.Count(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(n).To(Equal(2))

				Expect(driver.Delete(ctx, "11111111-1111-4111-8111-111111111111")).To(Succeed())

				_, err = driver.Get(ctx, "11111111-1111-4111-8111-111111111111")
				Expect(err).To(MatchError(storage.ErrNotFound))

				n, err = driver.Count(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(n).To(Equal(1))
			})

			It("treats deleting an unknown id as a no-op", func() {
				Expect(driver.Delete(ctx, "22222222-2222-4222-8222-222222222222")).To(Succeed())
			})
		})

		It("reports a healthy heartbeat", func() {
			Expect(driver.Heartbeat(ctx)).To(BeTrue())
		})
	})
}
