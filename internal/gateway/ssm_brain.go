package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// SSMParameterAPI Brain が使う Parameter Store の操作
type SSMParameterAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// SSMBrain AWS SSM Parameter Store を使う Brain。Lambda 実行時の既定
type SSMBrain struct {
	client SSMParameterAPI
	prefix string
}

// NewSSMBrain prefix 配下のパラメータに値を保存する Brain を作成
func NewSSMBrain(client SSMParameterAPI, prefix string) *SSMBrain {
	return &SSMBrain{client: client, prefix: strings.TrimRight(prefix, "/")}
}

func (b *SSMBrain) name(key string) string {
	return b.prefix + "/" + key
}

func (b *SSMBrain) Get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := b.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(b.name(key)),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return nil, false, nil
	}
	return []byte(*out.Parameter.Value), true, nil
}

func (b *SSMBrain) Set(ctx context.Context, key string, value []byte) error {
	_, err := b.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(b.name(key)),
		Value:     aws.String(string(value)),
		Type:      types.ParameterTypeString,
		Tier:      types.ParameterTierIntelligentTiering,
		Overwrite: aws.Bool(true),
	})
	return err
}
