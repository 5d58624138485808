package chatbot

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type ChatController struct {
	chatService Service
}

func NewChatController(chatService Service) *ChatController {
	return &ChatController{chatService: chatService}
}

// Query answers one question. Model and database failures still return 200
// with the error field set; only an unreadable body is a 400.
func (cc *ChatController) Query(ctx *gin.Context) {
	var req QueryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, cc.chatService.Query(ctx.Request.Context(), req))
}

func (cc *ChatController) GenerateTitle(ctx *gin.Context) {
	var req TitleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, TitleResponse{Title: cc.chatService.GenerateTitle(ctx.Request.Context(), req.History)})
}

func (cc *ChatController) RegisterRoutes(router gin.IRouter) {
	router.POST("/query", cc.Query)
	router.POST("/generate-title", cc.GenerateTitle)
}
