package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/teilomillet/parley/config"
	"go.uber.org/zap"
)

// converseAPI is the subset of the Bedrock runtime client used here.
type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Bedrock talks to a model hosted on Amazon Bedrock through the Converse API.
type Bedrock struct {
	api         converseAPI
	modelID     string
	temperature float32
	maxTokens   int32
	logger      *zap.Logger
}

// NewBedrock resolves AWS credentials through the default chain (environment,
// shared profile, instance role) for the configured region and fails if none
// can be retrieved.
func NewBedrock(ctx context.Context, cfg config.InferenceConfig, logger *zap.Logger) (*Bedrock, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %w", ErrUnauthenticated, err)
	}
	if awsCfg.Credentials == nil {
		return nil, fmt.Errorf("%w: no aws credential provider configured", ErrUnauthenticated)
	}
	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		return nil, fmt.Errorf("%w: retrieve aws credentials: %w", ErrUnauthenticated, err)
	}

	client := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	logger.Info("bedrock client initialized",
		zap.String("region", cfg.Region),
		zap.String("model_id", cfg.ModelID),
		zap.String("profile", cfg.Profile),
	)

	return newBedrockWithAPI(client, cfg, logger), nil
}

func newBedrockWithAPI(api converseAPI, cfg config.InferenceConfig, logger *zap.Logger) *Bedrock {
	return &Bedrock{
		api:         api,
		modelID:     cfg.ModelID,
		temperature: float32(cfg.Temperature),
		maxTokens:   int32(cfg.MaxTokens),
		logger:      logger,
	}
}

// Name implements Provider.
func (b *Bedrock) Name() string {
	return config.ProviderBedrock
}

// Generate sends prompt as a single user message and returns the first text
// block of the reply.
func (b *Bedrock) Generate(ctx context.Context, prompt string) (*Completion, error) {
	out, err := b.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(b.modelID),
		Messages: []types.Message{
			{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: prompt},
				},
			},
		},
		InferenceConfig: &types.InferenceConfiguration{
			Temperature: aws.Float32(b.temperature),
			MaxTokens:   aws.Int32(b.maxTokens),
		},
	})
	if err != nil {
		return nil, classifyBedrockError(err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: empty converse output", ErrMalformedResponse)
	}

	completion := &Completion{StopReason: string(out.StopReason)}
	if out.Usage != nil {
		completion.Usage = Usage{
			InputTokens:  int(aws.ToInt32(out.Usage.InputTokens)),
			OutputTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
		}
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		b.logger.Debug("converse output carried no message",
			zap.String("model_id", b.modelID),
			zap.String("stop_reason", completion.StopReason),
		)
		return completion, nil
	}
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			completion.Text = text.Value
			completion.HasText = true
			break
		}
	}

	return completion, nil
}

// classifyBedrockError wraps err with the sentinel matching the Bedrock error
// code. The original error stays in the chain and in the message.
func classifyBedrockError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ServiceQuotaExceededException", "TooManyRequestsException":
			return fmt.Errorf("%w: %w", ErrThrottled, err)
		case "ServiceUnavailableException", "ModelNotReadyException", "InternalServerException", "ModelTimeoutException":
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException":
			return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
		case "ValidationException", "ResourceNotFoundException", "ModelErrorException":
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return err
	}

	var sendErr *smithyhttp.RequestSendError
	if errors.As(err, &sendErr) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return err
}
