package dispatch_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/mcpbridge/pkg/config"
	"github.com/papercomputeco/mcpbridge/pkg/dispatch"
	"github.com/papercomputeco/mcpbridge/pkg/images"
	"github.com/papercomputeco/mcpbridge/pkg/llm"
	"github.com/papercomputeco/mcpbridge/pkg/provider"
)

func entries(raw string) []images.Entry {
	var out []images.Entry
	Expect(json.Unmarshal([]byte(raw), &out)).To(Succeed())
	return out
}

var _ = Describe("Dispatcher", func() {
	var (
		ctx      context.Context
		lmstudio *fakeClient
		ollama   *fakeClient
		textOnly provider.Client
		d        *dispatch.Dispatcher
	)

	BeforeEach(func() {
		ctx = context.Background()
		lmstudio = &fakeClient{
			name:   "lmstudio",
			caps:   provider.Capabilities{Vision: true, Temperature: true},
			format: images.FormatDataURI,
		}
		ollama = &fakeClient{
			name:   "ollama",
			caps:   provider.Capabilities{Vision: true},
			format: images.FormatRawBase64,
		}
		textOnly = provider.ChatOnly(&fakeClient{name: "text", caps: provider.Capabilities{Vision: true}})

		d = dispatch.New(config.Default(), map[string]provider.Client{
			"lmstudio": lmstudio,
			"Ollama":   ollama,
			"text":     textOnly,
		}, zap.NewNop())
	})

	Describe("Resolve", func() {
		It("defaults to the configured default provider", func() {
			name, client, err := d.Resolve("")
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("lmstudio"))
			Expect(client).To(BeIdenticalTo(lmstudio))
		})

		It("matches names regardless of case", func() {
			name, client, err := d.Resolve("OLLAMA")
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("ollama"))
			Expect(client).To(BeIdenticalTo(ollama))
		})

		It("rejects unknown providers", func() {
			_, _, err := d.Resolve("bogus")
			Expect(isValidation(err)).To(BeTrue())
			Expect(err).To(MatchError("Unsupported provider 'bogus'."))
		})
	})

	Describe("Chat", func() {
		messages := []llm.Message{{Role: "user", Content: "hi"}}

		It("routes to the default provider and wraps the response", func() {
			res, err := d.Chat(ctx, dispatch.ChatRequest{Messages: messages})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Provider).To(Equal("lmstudio"))
			Expect(res.Response).To(HaveKeyWithValue("reply", "chat"))
			Expect(lmstudio.chats()).To(HaveLen(1))
		})

		It("forwards model and temperature to providers that take a temperature", func() {
			temp := 0.7
			_, err := d.Chat(ctx, dispatch.ChatRequest{Messages: messages, Model: "m", Temperature: &temp})
			Expect(err).NotTo(HaveOccurred())

			call := lmstudio.chats()[0]
			Expect(call.Model).To(Equal("m"))
			Expect(call.Opts.Temperature).To(HaveValue(Equal(0.7)))
		})

		It("omits the temperature for providers that do not take one", func() {
			temp := 0.7
			_, err := d.Chat(ctx, dispatch.ChatRequest{Provider: "ollama", Messages: messages, Temperature: &temp})
			Expect(err).NotTo(HaveOccurred())
			Expect(ollama.chats()[0].Opts.Temperature).To(BeNil())
		})

		It("still chats with chat-only providers", func() {
			res, err := d.Chat(ctx, dispatch.ChatRequest{Provider: "text", Messages: messages})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Provider).To(Equal("text"))
		})

		It("rejects missing messages without contacting a provider", func() {
			_, err := d.Chat(ctx, dispatch.ChatRequest{})
			Expect(isValidation(err)).To(BeTrue())
			Expect(err).To(MatchError("'messages' must be a non-empty list."))

			_, err = d.Chat(ctx, dispatch.ChatRequest{Messages: []llm.Message{}})
			Expect(isValidation(err)).To(BeTrue())

			Expect(lmstudio.chats()).To(BeEmpty())
		})

		It("rejects unknown providers", func() {
			_, err := d.Chat(ctx, dispatch.ChatRequest{Provider: "bogus", Messages: messages})
			Expect(err).To(MatchError("Unsupported provider 'bogus'."))
		})
	})

	Describe("Vision", func() {
		It("renders images in the provider's format and uses the default prompt", func() {
			res, err := d.Vision(ctx, dispatch.VisionRequest{
				Provider: "ollama",
				Images:   entries(`[{"data_uri":"data:image/png;base64,AAAA"},{"base64":"BBBB"}]`),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Provider).To(Equal("ollama"))

			calls := ollama.visions()
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].Prompt).To(Equal(dispatch.DefaultPrompt))
			Expect(calls[0].Images).To(Equal([]string{"AAAA", "BBBB"}))
		})

		It("renders data URIs for OpenAI-compatible providers", func() {
			_, err := d.Vision(ctx, dispatch.VisionRequest{
				Prompt: "What camera?",
				Model:  "qwen-vl",
				Images: entries(`[{"base64":"AAAA","mime":"image/jpeg"}]`),
			})
			Expect(err).NotTo(HaveOccurred())

			call := lmstudio.visions()[0]
			Expect(call.Prompt).To(Equal("What camera?"))
			Expect(call.Model).To(Equal("qwen-vl"))
			Expect(call.Images).To(Equal([]string{"data:image/jpeg;base64,AAAA"}))
		})

		It("rejects missing images before contacting a provider", func() {
			_, err := d.Vision(ctx, dispatch.VisionRequest{})
			Expect(isValidation(err)).To(BeTrue())
			Expect(err).To(MatchError("'images' must be a non-empty list."))
			Expect(lmstudio.visions()).To(BeEmpty())
		})

		It("rejects providers without vision", func() {
			_, err := d.Vision(ctx, dispatch.VisionRequest{Provider: "text", Images: entries(`[{"base64":"AAAA"}]`)})
			Expect(isValidation(err)).To(BeTrue())
			Expect(err).To(MatchError("Provider 'text' does not support vision analysis."))
		})

		It("reports unreadable files as validation errors", func() {
			_, err := d.Vision(ctx, dispatch.VisionRequest{Images: entries(`["/no/such/file.png"]`)})
			Expect(isValidation(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("/no/such/file.png"))
			Expect(lmstudio.visions()).To(BeEmpty())
		})
	})

	Describe("Batch", func() {
		It("makes one call per image and preserves order", func() {
			imgs := entries(`[{"base64":"AAAA"},{"base64":"BBBB"},{"base64":"CCCC"}]`)

			res, err := d.Batch(ctx, dispatch.VisionRequest{Provider: "ollama", Images: imgs})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Provider).To(Equal("ollama"))
			Expect(res.Results).To(HaveLen(3))

			calls := ollama.visions()
			Expect(calls).To(HaveLen(3))
			for i, want := range []string{"AAAA", "BBBB", "CCCC"} {
				Expect(calls[i].Images).To(Equal([]string{want}))
				Expect(res.Results[i].Image.Value).To(Equal(want))
				Expect(res.Results[i].Response).To(HaveKeyWithValue("index", i+1))
			}
		})

		It("echoes the original image entries", func() {
			res, err := d.Batch(ctx, dispatch.VisionRequest{Images: entries(`[{"base64":"AAAA","mime":"image/gif"}]`)})
			Expect(err).NotTo(HaveOccurred())

			out, err := json.Marshal(res)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(out)).To(ContainSubstring(`"image":{"base64":"AAAA","mime":"image/gif"}`))
		})

		It("aborts on the first failing image and returns no results", func() {
			ollama.failOn = 2
			imgs := entries(`[{"base64":"AAAA"},{"base64":"BBBB"},{"base64":"CCCC"}]`)

			res, err := d.Batch(ctx, dispatch.VisionRequest{Provider: "ollama", Images: imgs})
			Expect(res).To(BeNil())

			var perr *provider.Error
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(ollama.visions()).To(HaveLen(2))
		})

		It("aborts on an invalid entry after earlier images were sent", func() {
			imgs := entries(`[{"base64":"AAAA"},{"url":"nope"}]`)

			_, err := d.Batch(ctx, dispatch.VisionRequest{Images: imgs})
			Expect(isValidation(err)).To(BeTrue())
			Expect(lmstudio.visions()).To(HaveLen(1))
		})

		It("rejects providers without vision", func() {
			_, err := d.Batch(ctx, dispatch.VisionRequest{Provider: "TEXT", Images: entries(`[{"base64":"AAAA"}]`)})
			Expect(err).To(MatchError("Provider 'text' does not support batch vision analysis."))
		})

		It("rejects missing images", func() {
			_, err := d.Batch(ctx, dispatch.VisionRequest{Images: nil})
			Expect(isValidation(err)).To(BeTrue())
		})
	})

	Describe("NewFromConfig", func() {
		It("builds a client per configured provider", func() {
			built, err := dispatch.NewFromConfig(config.Default(), zap.NewNop())
			Expect(err).NotTo(HaveOccurred())

			for _, name := range []string{"lmstudio", "ollama"} {
				_, client, err := built.Resolve(name)
				Expect(err).NotTo(HaveOccurred())
				Expect(client.Capabilities().Vision).To(BeTrue())
			}
			Expect(built.Config().DefaultProvider).To(Equal("lmstudio"))
		})
	})
})
