package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

type textDetector interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// RekognitionEngine reads plate text through AWS Rekognition DetectText.
type RekognitionEngine struct {
	client textDetector
}

func NewRekognitionEngine(ctx context.Context, region string) (*RekognitionEngine, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		return nil, fmt.Errorf("aws credentials: %w", err)
	}
	return &RekognitionEngine{client: rekognition.NewFromConfig(awsCfg)}, nil
}

func (e *RekognitionEngine) Name() string { return "rekognition" }

func (e *RekognitionEngine) ReadText(ctx context.Context, imagePath string) ([]string, error) {
	imageBytes, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	result, err := e.client.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: imageBytes},
	})
	if err != nil {
		return nil, fmt.Errorf("detect text: %w", err)
	}

	var lines []string
	for _, d := range result.TextDetections {
		if d.Type != types.TextTypesLine || d.DetectedText == nil {
			continue
		}
		if txt := strings.TrimSpace(*d.DetectedText); txt != "" {
			lines = append(lines, txt)
		}
	}
	return lines, nil
}
