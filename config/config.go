package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server Settings
	AppPort     string
	HOST        string
	DatabaseURL string

	// JWT Settings
	JWTSecret     string
	JWTExpiration string

	// SMTP Settings
	SMTPHost      string
	SMTPPort      string
	SMTPUser      string
	SMTPPassword  string
	EmailFromName string

	// AWS / S3 Settings
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3Bucket           string
	S3BaseURL          string

	// CORS Settings
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading configuration from environment")
	}

	config := &Config{
		AppPort:     os.Getenv("PORT"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		HOST:        os.Getenv("HOST"),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTExpiration: os.Getenv("JWT_EXPIRES_IN"),

		SMTPHost:      os.Getenv("SMTP_HOST"),
		SMTPPort:      os.Getenv("SMTP_PORT"),
		SMTPUser:      os.Getenv("SMTP_USER"),
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
		EmailFromName: os.Getenv("EMAIL_FROM_NAME"),

		AWSRegion:          os.Getenv("AWS_REGION"),
		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		S3Bucket:           os.Getenv("S3_BUCKET_NAME"),
		S3BaseURL:          os.Getenv("S3_BASE_URL"),

		CORSAllowOrigins: []string{"*"},
		CORSAllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		CORSAllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
	}

	return config
}
