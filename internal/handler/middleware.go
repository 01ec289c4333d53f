package handler

import (
	"log"
	"net/http"
	"strings"
	"time"

	"ewallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const headerRequestID = "X-Request-ID"

// RequestIDMiddleware 透传或生成请求 ID，日志里用来串联一次请求
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// LoggerMiddleware 访问日志，健康检查不记
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		target := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			target += "?" + raw
		}
		// 未经鉴权的请求 uid 为 0
		log.Printf("[HTTP] rid=%s uid=%d %s %s status=%d cost=%v ip=%s",
			c.GetString("request_id"),
			c.GetInt64("user_id"),
			c.Request.Method,
			target,
			c.Writer.Status(),
			time.Since(start),
			c.ClientIP(),
		)
	}
}

// RecoveryMiddleware 捕获 panic，返回统一的 500 响应
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[PANIC] %s %v", c.GetString("request_id"), err)
				response.Abort(c, response.CodeServerError, "Something went wrong, please try again later")
			}
		}()
		c.Next()
	}
}

// CORSMiddleware origins 为空或包含 "*" 时放行所有来源
func CORSMiddleware(origins []string) gin.HandlerFunc {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
