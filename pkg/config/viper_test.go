package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memories/pkg/config"
)

// setenv sets an environment variable for the rest of the spec.
func setenv(key, value string) {
	GinkgoHelper()
	orig, had := os.LookupEnv(key)
	Expect(os.Setenv(key, value)).To(Succeed())
	DeferCleanup(func() {
		if had {
			os.Setenv(key, orig)
		} else {
			os.Unsetenv(key)
		}
	})
}

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("returns viper with defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		defaults := config.NewDefaultConfig()
		Expect(v.GetString("storage.provider")).To(Equal(defaults.Storage.Provider))
		Expect(v.GetString("storage.collection")).To(Equal(defaults.Storage.Collection))
		Expect(v.GetInt("search.default_limit")).To(Equal(defaults.Search.DefaultLimit))
		Expect(v.GetFloat64("search.min_confidence")).To(Equal(defaults.Search.MinConfidence))
		Expect(v.GetFloat64("decay.half_life_hours")).To(Equal(defaults.Decay.HalfLifeHours))
		Expect(v.GetString("api.listen")).To(Equal(defaults.API.Listen))
	})

	It("reads config file values over defaults", func() {
		data := `[storage]
provider = "sqlite"

[decay]
half_life_hours = 24.0
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		Expect(v.GetString("storage.provider")).To(Equal("sqlite"))
		Expect(v.GetFloat64("decay.half_life_hours")).To(Equal(24.0))
		Expect(v.GetString("storage.collection")).To(Equal("memories"))
	})

	It("respects environment variables with MEMORIES_ prefix", func() {
		setenv("MEMORIES_STORAGE_PROVIDER", "chromem")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("storage.provider")).To(Equal("chromem"))
	})

	It("env vars take precedence over config file values", func() {
		data := `[storage]
provider = "sqlite"
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())
		setenv("MEMORIES_STORAGE_PROVIDER", "qdrant")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("storage.provider")).To(Equal("qdrant"))
	})

	It("honors legacy environment names", func() {
		setenv("COLLECTION_NAME", "legacy")
		setenv("DEFAULT_LIMIT", "3")
		setenv("MIN_CONFIDENCE", "0.1")
		setenv("DECAY_HALF_LIFE_HOURS", "100")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg, err := config.FromViper(v)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Storage.Collection).To(Equal("legacy"))
		Expect(cfg.Search.DefaultLimit).To(Equal(3))
		Expect(cfg.Search.MinConfidence).To(Equal(0.1))
		Expect(cfg.Decay.HalfLifeHours).To(Equal(100.0))
	})

	It("prefers MEMORIES_ names over legacy ones", func() {
		setenv("COLLECTION_NAME", "legacy")
		setenv("MEMORIES_STORAGE_COLLECTION", "current")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("storage.collection")).To(Equal("current"))
	})

	It("loads a .env file from the working directory", func() {
		workDir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(workDir, ".env"), []byte("MEMORIES_API_LISTEN=:7070\n"), 0o600)).To(Succeed())

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(workDir)).To(Succeed())
		DeferCleanup(func() {
			os.Chdir(origDir)
			os.Unsetenv("MEMORIES_API_LISTEN")
		})

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("api.listen")).To(Equal(":7070"))
	})
})

var _ = Describe("FromViper", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("materializes the defaults", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg, err := config.FromViper(v)
		Expect(err).NotTo(HaveOccurred())

		// OPENAI_API_KEY may be set on the machine running the tests
		cfg.Embedding.APIKey = ""
		Expect(cfg).To(Equal(config.NewDefaultConfig()))
	})

	It("builds a chroma target from CHROMADB_HOST and CHROMADB_PORT", func() {
		setenv("CHROMADB_HOST", "chroma.internal")
		setenv("CHROMADB_PORT", "9000")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg, err := config.FromViper(v)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Storage.Target).To(Equal("http://chroma.internal:9000"))
	})

	It("does not let CHROMADB_HOST override an explicit target", func() {
		setenv("CHROMADB_HOST", "chroma.internal")
		setenv("MEMORIES_STORAGE_TARGET", "http://other:8000")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg, err := config.FromViper(v)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Storage.Target).To(Equal("http://other:8000"))
	})

	It("fails validation for bad values", func() {
		setenv("MEMORIES_DECAY_HALF_LIFE_HOURS", "-5")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		_, err = config.FromViper(v)
		Expect(err).To(MatchError(ContainSubstring("decay.half_life_hours must be positive")))
	})
})
