package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-pos/middlewares"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

type UserController struct {
	DB             *gorm.DB
	Tokens         *utils.TokenManager
	DefaultTaxRate decimal.Decimal
}

func NewUserController(db *gorm.DB, tokens *utils.TokenManager, defaultTaxRate decimal.Decimal) *UserController {
	return &UserController{DB: db, Tokens: tokens, DefaultTaxRate: defaultTaxRate}
}

// Register creates a company and its owner. When outlet_name is given a
// brand and a first outlet are created as well.
func (uc *UserController) Register(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Email       string `json:"email" binding:"required,email"`
		Password    string `json:"password" binding:"required,min=8"`
		CompanyName string `json:"company_name" binding:"required"`
		OutletName  string `json:"outlet_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	duplicate := utils.NewConflictError("email %s is already registered", email).WithCode(utils.CodeDuplicateEmail)
	var count int64
	if err := uc.DB.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		utils.RespondError(c, err)
		return
	}
	if count > 0 {
		utils.RespondError(c, duplicate)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	var user models.User
	err = uc.DB.Transaction(func(tx *gorm.DB) error {
		company := models.Tenant{Name: req.CompanyName, Type: models.TenantCompany, IsActive: true}
		if err := tx.Create(&company).Error; err != nil {
			return err
		}
		if err := tx.Model(&company).Update("root_id", company.ID).Error; err != nil {
			return err
		}

		if req.OutletName != "" {
			brand := models.Tenant{Name: req.CompanyName, Type: models.TenantBrand, ParentID: &company.ID, RootID: company.ID, IsActive: true}
			if err := tx.Create(&brand).Error; err != nil {
				return err
			}
			outlet := models.Tenant{
				Name:     req.OutletName,
				Type:     models.TenantOutlet,
				ParentID: &brand.ID,
				RootID:   company.ID,
				TaxRate:  uc.DefaultTaxRate,
				IsActive: true,
			}
			if err := tx.Create(&outlet).Error; err != nil {
				return err
			}
		}

		user = models.User{
			TenantID: company.ID,
			Name:     req.Name,
			Email:    email,
			Password: string(hashed),
			Role:     models.RoleOwner,
			IsActive: true,
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = duplicate
		}
		utils.RespondError(c, err)
		return
	}

	token, err := uc.Tokens.GenerateToken(user.ID, user.Role, user.TenantID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.InfoLogger.WithField("tenant_id", user.TenantID).Infof("company registered by %s", user.Email)
	utils.RespondJSON(c, http.StatusCreated, "Registration successful", gin.H{
		"token": token,
		"user":  user,
	})
}

func (uc *UserController) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}

	invalid := utils.NewUnauthorizedError("invalid email or password")
	var user models.User
	if err := uc.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(input.Email))).First(&user).Error; err != nil {
		utils.RespondError(c, invalid)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		utils.RespondError(c, invalid)
		return
	}
	if !user.IsActive {
		utils.RespondError(c, utils.NewUnauthorizedError("account is deactivated"))
		return
	}

	token, err := uc.Tokens.GenerateToken(user.ID, user.Role, user.TenantID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	now := time.Now()
	user.LastLoginAt = &now
	if err := uc.DB.Model(&user).Update("last_login_at", now).Error; err != nil {
		utils.ErrorLogger.WithField("user_id", user.ID).Warnf("record last login: %v", err)
	}

	utils.RespondJSON(c, http.StatusOK, "Login successful", gin.H{
		"token": token,
		"user":  user,
	})
}

func (uc *UserController) GetProfile(c *gin.Context) {
	user := middlewares.CurrentUser(c)
	if user == nil {
		utils.RespondError(c, utils.NewUnauthorizedError("unauthorized"))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Profile", user)
}

func (uc *UserController) ListStaff(c *gin.Context) {
	p := utils.GetPagination(c)
	q := uc.DB.Model(&models.User{}).Where("tenant_id = ?", middlewares.CurrentTenantID(c))
	if role := c.Query("role"); role != "" {
		q = q.Where("role = ?", role)
	}
	if outletID := queryUint(c, "outlet_id"); outletID != 0 {
		q = q.Where("outlet_id = ?", outletID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		utils.RespondError(c, err)
		return
	}
	var users []models.User
	if err := q.Order("id ASC").Offset(p.Offset()).Limit(p.Limit).Find(&users).Error; err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondPaginated(c, http.StatusOK, "List of staff", users, p.WithTotal(total))
}

func (uc *UserController) CreateStaff(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
		Role     string `json:"role" binding:"required"`
		OutletID *uint  `json:"outlet_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	if err := uc.checkAssignableRole(c, req.Role); err != nil {
		utils.RespondError(c, err)
		return
	}
	tenantID := middlewares.CurrentTenantID(c)
	if req.OutletID != nil {
		if err := uc.checkOutlet(tenantID, *req.OutletID); err != nil {
			utils.RespondError(c, err)
			return
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	user := models.User{
		TenantID: tenantID,
		OutletID: req.OutletID,
		Name:     req.Name,
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Password: string(hashed),
		Role:     req.Role,
		IsActive: true,
	}
	if err := uc.DB.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = utils.NewConflictError("email %s is already registered", user.Email).WithCode(utils.CodeDuplicateEmail)
		}
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Staff created", user)
}

func (uc *UserController) UpdateStaff(c *gin.Context) {
	user, err := uc.findStaff(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if err := checkManageable(c, user); err != nil {
		utils.RespondError(c, err)
		return
	}

	var req struct {
		Name     *string `json:"name"`
		Role     *string `json:"role"`
		OutletID *uint   `json:"outlet_id"`
		IsActive *bool   `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Role != nil && *req.Role != user.Role {
		if user.Role == models.RoleOwner {
			utils.RespondError(c, utils.NewForbiddenError("the owner's role cannot be changed"))
			return
		}
		if err := uc.checkAssignableRole(c, *req.Role); err != nil {
			utils.RespondError(c, err)
			return
		}
		updates["role"] = *req.Role
	}
	if req.OutletID != nil {
		if *req.OutletID == 0 {
			updates["outlet_id"] = nil
		} else {
			if err := uc.checkOutlet(user.TenantID, *req.OutletID); err != nil {
				utils.RespondError(c, err)
				return
			}
			updates["outlet_id"] = *req.OutletID
		}
	}
	if req.IsActive != nil {
		if !*req.IsActive && (user.Role == models.RoleOwner || user.ID == middlewares.CurrentUserID(c)) {
			utils.RespondError(c, utils.NewForbiddenError("this account cannot be deactivated"))
			return
		}
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		utils.RespondError(c, utils.NewValidationError("nothing to update"))
		return
	}

	if err := uc.DB.Model(user).Updates(updates).Error; err != nil {
		utils.RespondError(c, err)
		return
	}
	if err := uc.DB.First(user, user.ID).Error; err != nil {
		utils.ErrorLogger.WithField("user_id", user.ID).Warnf("reload staff after update: %v", err)
	}
	utils.RespondJSON(c, http.StatusOK, "Staff updated", user)
}

// DeactivateStaff disables the account. Staff are never hard-deleted because
// orders and payments keep referring to them.
func (uc *UserController) DeactivateStaff(c *gin.Context) {
	user, err := uc.findStaff(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if user.Role == models.RoleOwner || user.ID == middlewares.CurrentUserID(c) {
		utils.RespondError(c, utils.NewForbiddenError("this account cannot be deactivated"))
		return
	}
	if err := checkManageable(c, user); err != nil {
		utils.RespondError(c, err)
		return
	}
	if err := uc.DB.Model(user).Update("is_active", false).Error; err != nil {
		utils.RespondError(c, err)
		return
	}
	user.IsActive = false
	utils.RespondJSON(c, http.StatusOK, "Staff deactivated", user)
}

func (uc *UserController) findStaff(c *gin.Context) (*models.User, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := uc.DB.Where("id = ? AND tenant_id = ?", id, middlewares.CurrentTenantID(c)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("staff member")
		}
		return nil, err
	}
	return &user, nil
}

// checkManageable keeps managers away from accounts above the floor staff.
func checkManageable(c *gin.Context, target *models.User) error {
	if c.GetString(middlewares.CtxRole) != models.RoleManager {
		return nil
	}
	if !isFloorRole(target.Role) {
		return utils.NewForbiddenError("managers can only manage cashier, waiter or chef accounts")
	}
	return nil
}

func isFloorRole(role string) bool {
	switch role {
	case models.RoleCashier, models.RoleWaiter, models.RoleChef:
		return true
	}
	return false
}

// checkAssignableRole: nobody hands out the owner role, managers only hire floor and kitchen staff.
func (uc *UserController) checkAssignableRole(c *gin.Context, role string) error {
	if !models.IsValidRole(role) {
		return utils.NewValidationError("invalid role %q", role)
	}
	if role == models.RoleOwner {
		return utils.NewForbiddenError("the owner role cannot be assigned")
	}
	if c.GetString(middlewares.CtxRole) == models.RoleManager && !isFloorRole(role) {
		return utils.NewForbiddenError("managers can only assign cashier, waiter or chef")
	}
	return nil
}

func (uc *UserController) checkOutlet(tenantID, outletID uint) error {
	var count int64
	if err := uc.DB.Model(&models.Tenant{}).
		Where("id = ? AND root_id = ? AND type = ?", outletID, tenantID, models.TenantOutlet).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return utils.NewValidationError("outlet %d does not belong to your company", outletID)
	}
	return nil
}
