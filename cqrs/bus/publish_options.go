package bus

import (
	wmmessage "github.com/ThreeDotsLabs/watermill/message"
)

// PublishOption configures a single Send or Publish call.
type PublishOption func(*publishOptions)

type publishOptions struct {
	publisher wmmessage.Publisher
	metadata  map[string]string
}

// WithPublisher uses the given publisher for this call only,
// e.g. the poison-aware publisher of a handler under test.
func WithPublisher(pub wmmessage.Publisher) PublishOption {
	return func(o *publishOptions) {
		o.publisher = pub
	}
}

// WithMetadata adds transport metadata to the produced message.
func WithMetadata(key, value string) PublishOption {
	return func(o *publishOptions) {
		if o.metadata == nil {
			o.metadata = map[string]string{}
		}

		o.metadata[key] = value
	}
}

func applyPublishOptions(opts []PublishOption) publishOptions {
	var po publishOptions

	for _, opt := range opts {
		if opt != nil {
			opt(&po)
		}
	}

	return po
}
