package constants

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestConstants(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Constants Suite")
}

var _ = DescribeTable("ImageFormat",
	func(ext, want string) {
		Expect(ImageFormat(ext)).To(Equal(want))
	},
	Entry("png", ".png", "png"),
	Entry("jpg normalizes to jpeg", ".jpg", "jpeg"),
	Entry("jpeg", ".jpeg", "jpeg"),
	Entry("webp", ".webp", "webp"),
	Entry("case-insensitive", ".PNG", "png"),
	Entry("gif is outside the allow-list", ".gif", ""),
	Entry("empty extension", "", ""),
)

var _ = Describe("AllowedImageExtensions", func() {
	It("backs every format ImageFormat accepts", func() {
		for ext := range AllowedImageExtensions {
			Expect(ImageFormat(ext)).NotTo(BeEmpty())
		}
	})
})
