package eventstreamutils_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memories/pkg/eventstream/kafka"
	"github.com/papercomputeco/memories/pkg/eventstream/nop"
	eventstreamutils "github.com/papercomputeco/memories/pkg/eventstream/utils"
	"github.com/papercomputeco/memories/pkg/logger"
)

var _ = Describe("NewPublisher", func() {
	It("defaults to the no-op publisher", func() {
		p, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{})
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeAssignableToTypeOf(&nop.Publisher{}))
	})

	It("builds a kafka publisher without dialing", func() {
		p, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
			ProviderType: "kafka",
			Brokers:      "127.0.0.1:1",
			Topic:        "memories.events",
			Logger:       logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeAssignableToTypeOf(&kafka.Publisher{}))
		Expect(p.Close()).To(Succeed())
	})

	It("requires brokers for kafka", func() {
		_, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
			ProviderType: "kafka",
			Brokers:      " , ",
			Topic:        "t",
			Logger:       logger.Nop(),
		})
		Expect(err).To(MatchError("kafka brokers are required"))
	})

	It("rejects unknown providers", func() {
		_, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{ProviderType: "nats"})
		Expect(err).To(MatchError("unsupported events provider: nats"))
	})
})

var _ = Describe("SplitBrokers", func() {
	It("trims and drops empty entries", func() {
		Expect(eventstreamutils.SplitBrokers("a:9092, b:9092,,")).To(Equal([]string{"a:9092", "b:9092"}))
		Expect(eventstreamutils.SplitBrokers("")).To(BeEmpty())
	})
})
