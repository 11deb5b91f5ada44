package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/papercomputeco/mcpbridge/pkg/images"
	"github.com/papercomputeco/mcpbridge/pkg/llm"
	"github.com/papercomputeco/mcpbridge/pkg/provider"
)

type chatCall struct {
	Messages []llm.Message
	Model    string
	Opts     provider.ChatOptions
}

type visionCall struct {
	Prompt string
	Images []string
	Model  string
}

// fakeClient records calls. failOn makes the nth vision call (1-based) fail.
type fakeClient struct {
	name   string
	caps   provider.Capabilities
	format images.Format
	failOn int

	mu          sync.Mutex
	chatCalls   []chatCall
	visionCalls []visionCall
}

func (f *fakeClient) Name() string                        { return f.name }
func (f *fakeClient) Capabilities() provider.Capabilities { return f.caps }
func (f *fakeClient) ImageFormat() images.Format          { return f.format }

func (f *fakeClient) Chat(_ context.Context, messages []llm.Message, model string, opts provider.ChatOptions) (llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatCalls = append(f.chatCalls, chatCall{Messages: messages, Model: model, Opts: opts})
	return llm.Response{"reply": "chat", "from": f.name}, nil
}

func (f *fakeClient) Vision(_ context.Context, prompt string, imgs []string, model string) (llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visionCalls = append(f.visionCalls, visionCall{Prompt: prompt, Images: imgs, Model: model})
	if f.failOn > 0 && len(f.visionCalls) == f.failOn {
		return nil, &provider.Error{Provider: f.name, StatusCode: 500, Message: "backend exploded"}
	}
	return llm.Response{"index": len(f.visionCalls), "images": fmt.Sprint(imgs)}, nil
}

func (f *fakeClient) chats() []chatCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chatCall(nil), f.chatCalls...)
}

func (f *fakeClient) visions() []visionCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]visionCall(nil), f.visionCalls...)
}

func isValidation(err error) bool {
	var verr *llm.ValidationError
	return errors.As(err, &verr)
}
