package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"alumnet/internal/auth"
	"alumnet/internal/config"
	"alumnet/internal/models"
	"alumnet/internal/services"
	"alumnet/internal/storage"

	"gorm.io/gorm"
)

const usage = `用法: admin <命令> [参数]

命令:
  pending                        列出待审核的注册申请
  approve -id <用户ID>           批准注册申请
  reject -id <用户ID>            驳回注册申请并删除账号
  create-admin -username <名> -password <密码> [-email <邮箱>]
                                 创建管理员账号
  announce -title <标题> -body <正文> -author <管理员ID>
                                 发布全站公告
`

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}
	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("无法初始化数据库: %v", err)
	}

	userRepo := storage.NewGormUserRepository(db)
	announcementRepo := storage.NewGormAnnouncementRepository(db)
	userService := services.NewUserService(userRepo)
	announcementService := services.NewAnnouncementService(announcementRepo)

	ctx := context.Background()

	switch os.Args[1] {
	case "pending":
		runPending(ctx, userService)
	case "approve":
		runApprove(ctx, userService, os.Args[2:])
	case "reject":
		runReject(ctx, userService, os.Args[2:])
	case "create-admin":
		runCreateAdmin(ctx, db, os.Args[2:])
	case "announce":
		runAnnounce(ctx, announcementService, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func runPending(ctx context.Context, userService services.UserService) {
	users, err := userService.ListPendingUsers(ctx)
	if err != nil {
		log.Fatalf("获取待审核用户失败: %v", err)
	}
	if len(users) == 0 {
		fmt.Println("没有待审核的注册申请。")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\t用户名\t昵称\t类型\t专业\t毕业年份\t提交时间")
	for _, u := range users {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			u.ID, u.Username, u.Nickname, u.Role, u.Major, u.GraduationYear,
			u.CreatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()
}

func runApprove(ctx context.Context, userService services.UserService, args []string) {
	fs := flag.NewFlagSet("approve", flag.ExitOnError)
	id := fs.Uint("id", 0, "用户 ID")
	fs.Parse(args)
	if *id == 0 {
		log.Fatal("必须指定 -id")
	}

	if err := userService.ApproveUser(ctx, uint(*id)); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			log.Fatalf("用户 %d 不存在", *id)
		}
		log.Fatalf("批准失败: %v", err)
	}
	fmt.Printf("已批准用户 %d。\n", *id)
}

func runReject(ctx context.Context, userService services.UserService, args []string) {
	fs := flag.NewFlagSet("reject", flag.ExitOnError)
	id := fs.Uint("id", 0, "用户 ID")
	fs.Parse(args)
	if *id == 0 {
		log.Fatal("必须指定 -id")
	}

	if err := userService.RejectUser(ctx, uint(*id)); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			log.Fatalf("用户 %d 不存在或已通过审核", *id)
		}
		log.Fatalf("驳回失败: %v", err)
	}
	fmt.Printf("已驳回用户 %d 的注册申请。\n", *id)
}

// runCreateAdmin writes the admin user directly through gorm. Admin
// accounts never go through the registration/approval flow.
func runCreateAdmin(ctx context.Context, db *gorm.DB, args []string) {
	fs := flag.NewFlagSet("create-admin", flag.ExitOnError)
	username := fs.String("username", "", "用户名")
	password := fs.String("password", "", "密码")
	email := fs.String("email", "", "邮箱")
	fs.Parse(args)
	if *username == "" || *password == "" {
		log.Fatal("必须指定 -username 和 -password")
	}

	hashed, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatalf("密码处理失败: %v", err)
	}

	admin := &models.User{
		Username:     *username,
		PasswordHash: hashed,
		Email:        *email,
		Role:         models.RoleAdmin,
		Approved:     true,
	}
	if err := db.WithContext(ctx).Create(admin).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			log.Fatalf("用户名 %s 已存在", *username)
		}
		log.Fatalf("创建管理员失败: %v", err)
	}
	fmt.Printf("已创建管理员账号 %s (ID: %d)。\n", admin.Username, admin.ID)
}

func runAnnounce(ctx context.Context, announcementService services.AnnouncementService, args []string) {
	fs := flag.NewFlagSet("announce", flag.ExitOnError)
	title := fs.String("title", "", "公告标题")
	body := fs.String("body", "", "公告正文")
	author := fs.Uint("author", 0, "发布者的管理员 ID")
	fs.Parse(args)
	if *title == "" || *body == "" || *author == 0 {
		log.Fatal("必须指定 -title、-body 和 -author")
	}

	announcement, err := announcementService.PublishAnnouncement(ctx, uint(*author), *title, *body)
	if err != nil {
		log.Fatalf("发布公告失败: %v", err)
	}
	fmt.Printf("公告已发布 (ID: %d)。\n", announcement.ID)
}
