package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"MeetScope/config"
	"MeetScope/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore 将会议音频保存到 MinIO 对象存储
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore 初始化 MinIO 客户端并确保存储桶存在
func NewMinioStore(cfg *config.Config) (*MinioStore, error) {
	logger.Info("正在连接 MinIO 服务器...",
		logger.String("bucket", cfg.MinioBucket),
		logger.String("region", cfg.MinioRegion))

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 检查存储桶是否存在，不存在则创建
	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		err = client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion})
		if err != nil {
			return nil, fmt.Errorf("创建存储桶失败: %w", err)
		}
		logger.Info("成功创建存储桶", logger.String("bucket", cfg.MinioBucket))
	}

	logger.Info("MinIO 客户端初始化成功", logger.String("bucket", cfg.MinioBucket))
	return &MinioStore{client: client, bucket: cfg.MinioBucket}, nil
}

// Save 以流式方式上传音频对象
func (s *MinioStore) Save(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("上传音频对象失败 %s: %w", objectName, err)
	}
	return nil
}

// Open 获取音频对象的读取流
func (s *MinioStore) Open(ctx context.Context, objectName string) (io.ReadCloser, error) {
	object, err := s.client.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("读取音频对象失败 %s: %w", objectName, err)
	}
	// GetObject 是惰性的，Stat 确认对象确实存在
	if _, err := object.Stat(); err != nil {
		object.Close()
		return nil, fmt.Errorf("音频对象不存在 %s: %w", objectName, err)
	}
	return object, nil
}

// Delete 删除音频对象
func (s *MinioStore) Delete(ctx context.Context, objectName string) error {
	err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("删除音频对象失败 %s: %w", objectName, err)
	}
	return nil
}

// Client 返回底层 MinIO 客户端，供管理命令使用
func (s *MinioStore) Client() *minio.Client {
	return s.client
}

// Bucket 返回存储桶名称
func (s *MinioStore) Bucket() string {
	return s.bucket
}
