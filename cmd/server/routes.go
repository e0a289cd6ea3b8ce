package main

import (
	"net/http"

	"streetlab/internal/achievement"
	"streetlab/internal/addiction"
	"streetlab/internal/catalog"
	"streetlab/internal/common"
	"streetlab/internal/config"
	"streetlab/internal/effects"
	"streetlab/internal/inventory"
	"streetlab/internal/lab"
	"streetlab/internal/market"
	"streetlab/internal/media"
	"streetlab/internal/metrics"
	"streetlab/internal/notify"
	"streetlab/internal/player"
	"streetlab/internal/production"
	"streetlab/internal/territory"
	"streetlab/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// app holds the wired services of one process.
type app struct {
	cfg   *config.Config
	hub   *notify.Hub
	redis *redis.Client
	media *media.Service
	hook  achievement.Hook

	players    *player.Service
	catalog    *catalog.Service
	inventory  *inventory.Service
	territory  *territory.Service
	labs       *lab.Service
	production *production.Service
	addictions *addiction.Service
	effects    *effects.Service
	market     *market.Service
	sweeper    *production.Sweeper
}

func newApp(db *gorm.DB, cfg *config.Config, images catalog.ImageStore, mediaService *media.Service, hook achievement.Hook, redisClient *redis.Client) *app {
	ledger := player.NewLedger()
	holdings := inventory.NewLedger()
	dice := common.NewDice()
	hub := notify.NewHub()
	territories := territory.NewService(db)
	addictions := addiction.NewService(db, ledger, cfg.Tuning.Addiction, dice, hook)

	return &app{
		cfg:   cfg,
		hub:   hub,
		redis: redisClient,
		media: mediaService,
		hook:  hook,

		players:    player.NewService(db, ledger),
		catalog:    catalog.NewService(db, images),
		inventory:  inventory.NewService(db, holdings, ledger),
		territory:  territories,
		labs:       lab.NewService(db, ledger, cfg.Tuning.Lab, hook),
		production: production.NewService(db, holdings, ledger, cfg.Tuning.Production, dice, hook, hub),
		addictions: addictions,
		effects:    effects.NewService(db, holdings, ledger, addictions, cfg.Tuning.Effects, dice, hook),
		market:     market.NewService(db, holdings, ledger, territories, cfg.Tuning.Market, dice, hook, hub),
	}
}

func (a *app) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.CORS(a.cfg.CORSAllowAll))
	r.Use(metrics.Middleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	playerHandler := player.NewHandler(a.players)
	auth := middleware.JWTAuth(a.cfg.JWTSecret, playerHandler)
	limiter := middleware.NewRateLimiter(a.redis, "rate")
	restricted := middleware.RestrictionGuard(a.players)

	catalogHandler := catalog.NewHandler(a.catalog)
	inventoryHandler := inventory.NewHandler(a.inventory)
	territoryHandler := territory.NewHandler(a.territory)
	labHandler := lab.NewHandler(a.labs)
	productionHandler := production.NewHandler(a.production, a.sweeper)
	effectsHandler := effects.NewHandler(a.effects)
	addictionHandler := addiction.NewHandler(a.addictions)
	marketHandler := market.NewHandler(a.market)
	achievementHandler := achievement.NewHandler(a.hook)

	r.GET("/ws", auth, a.hub.Serve)

	v1 := r.Group("/api/v1")
	{
		// Public catalog
		v1.GET("/catalog/drugs", catalogHandler.ListDrugs)
		v1.GET("/catalog/drugs/:id", catalogHandler.GetDrug)
		v1.GET("/catalog/drugs/:id/image", catalogHandler.GetDrugImage)
		v1.GET("/catalog/ingredients", catalogHandler.ListIngredients)
		v1.GET("/catalog/ingredients/:id", catalogHandler.GetIngredient)
		v1.GET("/territories", territoryHandler.ListTerritories)
		v1.GET("/territories/:id", territoryHandler.GetTerritory)
		v1.GET("/labs/locations", labHandler.ListLocations)
		if a.media != nil {
			v1.GET("/media/*key", media.NewHandler(a.media, catalog.ImageKeyPrefix).GetImage)
		}
	}

	user := v1.Group("")
	user.Use(auth, limiter.Limit(120))
	{
		user.GET("/me", playerHandler.GetProfile)
		user.GET("/me/cash", playerHandler.GetCashHistory)

		user.GET("/inventory", inventoryHandler.GetInventory)
		user.POST("/inventory/ingredients/buy", inventoryHandler.BuyIngredients)

		user.GET("/labs", labHandler.ListLabs)
		user.POST("/labs", labHandler.CreateLab)
		user.GET("/labs/:id", labHandler.GetLab)
		user.PUT("/labs/:id", labHandler.RenameLab)
		user.DELETE("/labs/:id", labHandler.DeleteLab)
		user.POST("/labs/:id/upgrade", labHandler.UpgradeLab)

		user.POST("/production/start", productionHandler.StartProduction)
		user.POST("/production/collect", productionHandler.CollectProductions)
		user.GET("/production/batches", productionHandler.ListBatches)

		user.POST("/drugs/:id/use", effectsHandler.UseDrug)
		user.GET("/effects", effectsHandler.ActiveEffects)
		user.GET("/effects/bonuses", effectsHandler.ActiveBonuses)

		user.GET("/achievements", achievementHandler.GetProgress)

		user.GET("/addictions", addictionHandler.ListAddictions)
		user.GET("/addictions/withdrawals", addictionHandler.ListWithdrawals)
		user.GET("/addictions/:id", addictionHandler.GetAddiction)
		user.POST("/addictions/:id/rehab", addictionHandler.Rehab)

		user.GET("/deals", marketHandler.ListDeals)
		user.GET("/deals/mine", marketHandler.MyDeals)
		user.GET("/deals/:id", marketHandler.GetDeal)
		user.POST("/deals", restricted, marketHandler.CreateDeal)
		user.POST("/deals/:id/buy", restricted, marketHandler.BuyDeal)
		user.POST("/deals/:id/cancel", marketHandler.CancelDeal)
	}

	admin := v1.Group("/admin")
	admin.Use(auth, middleware.AdminOnly())
	{
		admin.POST("/drugs", catalogHandler.CreateDrug)
		admin.PUT("/drugs/:id", catalogHandler.UpdateDrug)
		admin.DELETE("/drugs/:id", catalogHandler.DeleteDrug)
		admin.PUT("/drugs/:id/recipe", catalogHandler.SetRecipe)
		admin.POST("/drugs/:id/image", catalogHandler.UploadDrugImage)
		admin.POST("/ingredients", catalogHandler.CreateIngredient)
		admin.PUT("/ingredients/:id", catalogHandler.UpdateIngredient)
		admin.DELETE("/ingredients/:id", catalogHandler.DeleteIngredient)
		admin.POST("/territories", territoryHandler.CreateTerritory)
		admin.GET("/sweeper", productionHandler.SweeperStatus)
		admin.POST("/sweeper/run", productionHandler.ForceSweep)
	}

	return r
}
