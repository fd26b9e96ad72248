package handlers

import (
	"net/http"

	"onboard-hub/backend/internal/cache"
	"onboard-hub/backend/internal/worker"

	"github.com/gin-gonic/gin"
)

type CacheHandler struct {
	Store    *cache.RedisCache
	Sessions *cache.SessionCache
	Queue    *worker.JobQueue
}

func NewCacheHandler(store *cache.RedisCache, sessions *cache.SessionCache, queue *worker.JobQueue) *CacheHandler {
	return &CacheHandler{
		Store:    store,
		Sessions: sessions,
		Queue:    queue,
	}
}

// GetStats reports cache counters and queue depths.
// GET /admin/cache/stats
func (h *CacheHandler) GetStats(c *gin.Context) {
	stats := h.Store.Stats()

	if h.Queue != nil {
		queues := gin.H{}
		for _, name := range []string{worker.DefaultQueue, worker.RetryQueue, worker.DeadQueue} {
			if size, err := h.Queue.GetQueueSize(name); err == nil {
				queues[name] = size
			}
		}
		stats["queues"] = queues
	}

	c.JSON(http.StatusOK, stats)
}

// GetHealth pings the cache backend.
// GET /admin/cache/health
func (h *CacheHandler) GetHealth(c *gin.Context) {
	if err := h.Store.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// EvictUserData enqueues async eviction of a user's cached records.
// POST /admin/cache/evict/:user_id
func (h *CacheHandler) EvictUserData(c *gin.Context) {
	userID := c.Param("user_id")

	if h.Queue == nil {
		if err := h.Sessions.DeleteUserData(c.Request.Context(), userID); err != nil {
			handleCacheError(c, err, "user data not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "evicted", "user_id": userID})
		return
	}

	payload := map[string]interface{}{"user_id": userID}
	if err := h.Queue.Enqueue(worker.DefaultQueue, worker.JobTypeCacheEvict, payload); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue eviction"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "queued",
		"user_id": userID,
	})
}
