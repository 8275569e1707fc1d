package gcn

import "igemm/internal/compile/author/asm"

type SLoadDword []asm.Gen

func (x SLoadDword) Append(to []byte) []byte {
	return inst(to, "s_load_dword", x)
}

type SLoadDwordx2 []asm.Gen

func (x SLoadDwordx2) Append(to []byte) []byte {
	return inst(to, "s_load_dwordx2", x)
}

type SLoadDwordx4 []asm.Gen

func (x SLoadDwordx4) Append(to []byte) []byte {
	return inst(to, "s_load_dwordx4", x)
}

type SMovB32 []asm.Gen

func (x SMovB32) Append(to []byte) []byte {
	return inst(to, "s_mov_b32", x)
}

type SMovB64 []asm.Gen

func (x SMovB64) Append(to []byte) []byte {
	return inst(to, "s_mov_b64", x)
}

type SAddU32 []asm.Gen

func (x SAddU32) Append(to []byte) []byte {
	return inst(to, "s_add_u32", x)
}

type SAddcU32 []asm.Gen

func (x SAddcU32) Append(to []byte) []byte {
	return inst(to, "s_addc_u32", x)
}

type SSubU32 []asm.Gen

func (x SSubU32) Append(to []byte) []byte {
	return inst(to, "s_sub_u32", x)
}

type SSubI32 []asm.Gen

func (x SSubI32) Append(to []byte) []byte {
	return inst(to, "s_sub_i32", x)
}

type SMulI32 []asm.Gen

func (x SMulI32) Append(to []byte) []byte {
	return inst(to, "s_mul_i32", x)
}

type SMaxU32 []asm.Gen

func (x SMaxU32) Append(to []byte) []byte {
	return inst(to, "s_max_u32", x)
}

type SLshlB32 []asm.Gen

func (x SLshlB32) Append(to []byte) []byte {
	return inst(to, "s_lshl_b32", x)
}

type SLshrB32 []asm.Gen

func (x SLshrB32) Append(to []byte) []byte {
	return inst(to, "s_lshr_b32", x)
}

type SAndB32 []asm.Gen

func (x SAndB32) Append(to []byte) []byte {
	return inst(to, "s_and_b32", x)
}

type SAndSaveexecB64 []asm.Gen

func (x SAndSaveexecB64) Append(to []byte) []byte {
	return inst(to, "s_and_saveexec_b64", x)
}

type SOrB64 []asm.Gen

func (x SOrB64) Append(to []byte) []byte {
	return inst(to, "s_or_b64", x)
}

type SCmpLeI32 []asm.Gen

func (x SCmpLeI32) Append(to []byte) []byte {
	return inst(to, "s_cmp_le_i32", x)
}

type SCmpGtI32 []asm.Gen

func (x SCmpGtI32) Append(to []byte) []byte {
	return inst(to, "s_cmp_gt_i32", x)
}

type SBranch []asm.Gen

func (x SBranch) Append(to []byte) []byte {
	return inst(to, "s_branch", x)
}

type SCbranchScc0 []asm.Gen

func (x SCbranchScc0) Append(to []byte) []byte {
	return inst(to, "s_cbranch_scc0", x)
}

type SCbranchScc1 []asm.Gen

func (x SCbranchScc1) Append(to []byte) []byte {
	return inst(to, "s_cbranch_scc1", x)
}

type SBarrier []asm.Gen

func (x SBarrier) Append(to []byte) []byte {
	return inst(to, "s_barrier", x)
}

type SEndpgm []asm.Gen

func (x SEndpgm) Append(to []byte) []byte {
	return inst(to, "s_endpgm", x)
}

type VMovB32 []asm.Gen

func (x VMovB32) Append(to []byte) []byte {
	return inst(to, "v_mov_b32", x)
}

type VAddU32 []asm.Gen

func (x VAddU32) Append(to []byte) []byte {
	return inst(to, "v_add_u32", x)
}

type VSubU32 []asm.Gen

func (x VSubU32) Append(to []byte) []byte {
	return inst(to, "v_sub_u32", x)
}

type VSubrevU32 []asm.Gen

func (x VSubrevU32) Append(to []byte) []byte {
	return inst(to, "v_subrev_u32", x)
}

type VAddCoU32 []asm.Gen

func (x VAddCoU32) Append(to []byte) []byte {
	return inst(to, "v_add_co_u32", x)
}

type VSubCoU32 []asm.Gen

func (x VSubCoU32) Append(to []byte) []byte {
	return inst(to, "v_sub_co_u32", x)
}

type VMulLoU32 []asm.Gen

func (x VMulLoU32) Append(to []byte) []byte {
	return inst(to, "v_mul_lo_u32", x)
}

type VMulHiU32 []asm.Gen

func (x VMulHiU32) Append(to []byte) []byte {
	return inst(to, "v_mul_hi_u32", x)
}

type VLshlrevB32 []asm.Gen

func (x VLshlrevB32) Append(to []byte) []byte {
	return inst(to, "v_lshlrev_b32", x)
}

type VLshrrevB32 []asm.Gen

func (x VLshrrevB32) Append(to []byte) []byte {
	return inst(to, "v_lshrrev_b32", x)
}

type VAndB32 []asm.Gen

func (x VAndB32) Append(to []byte) []byte {
	return inst(to, "v_and_b32", x)
}

type VOrB32 []asm.Gen

func (x VOrB32) Append(to []byte) []byte {
	return inst(to, "v_or_b32", x)
}

type VXorB32 []asm.Gen

func (x VXorB32) Append(to []byte) []byte {
	return inst(to, "v_xor_b32", x)
}

type VMacF32 []asm.Gen

func (x VMacF32) Append(to []byte) []byte {
	return inst(to, "v_mac_f32", x)
}

type VCmpEqU32 []asm.Gen

func (x VCmpEqU32) Append(to []byte) []byte {
	return inst(to, "v_cmp_eq_u32", x)
}

type VCmpGtU32 []asm.Gen

func (x VCmpGtU32) Append(to []byte) []byte {
	return inst(to, "v_cmp_gt_u32", x)
}

type VCmpGeU32 []asm.Gen

func (x VCmpGeU32) Append(to []byte) []byte {
	return inst(to, "v_cmp_ge_u32", x)
}

type VCndmaskB32 []asm.Gen

func (x VCndmaskB32) Append(to []byte) []byte {
	return inst(to, "v_cndmask_b32", x)
}

type VSwapB32 []asm.Gen

func (x VSwapB32) Append(to []byte) []byte {
	return inst(to, "v_swap_b32", x)
}

type VCvtF32U32 []asm.Gen

func (x VCvtF32U32) Append(to []byte) []byte {
	return inst(to, "v_cvt_f32_u32", x)
}

type VCvtU32F32 []asm.Gen

func (x VCvtU32F32) Append(to []byte) []byte {
	return inst(to, "v_cvt_u32_f32", x)
}

type VMulF32 []asm.Gen

func (x VMulF32) Append(to []byte) []byte {
	return inst(to, "v_mul_f32", x)
}

type BufferLoadDword []asm.Gen

func (x BufferLoadDword) Append(to []byte) []byte {
	return inst(to, "buffer_load_dword", x)
}

type BufferLoadDwordx2 []asm.Gen

func (x BufferLoadDwordx2) Append(to []byte) []byte {
	return inst(to, "buffer_load_dwordx2", x)
}

type BufferLoadDwordx4 []asm.Gen

func (x BufferLoadDwordx4) Append(to []byte) []byte {
	return inst(to, "buffer_load_dwordx4", x)
}

type BufferStoreDword []asm.Gen

func (x BufferStoreDword) Append(to []byte) []byte {
	return inst(to, "buffer_store_dword", x)
}

type DsWriteB32 []asm.Gen

func (x DsWriteB32) Append(to []byte) []byte {
	return inst(to, "ds_write_b32", x)
}

type DsWriteB64 []asm.Gen

func (x DsWriteB64) Append(to []byte) []byte {
	return inst(to, "ds_write_b64", x)
}

type DsWriteB128 []asm.Gen

func (x DsWriteB128) Append(to []byte) []byte {
	return inst(to, "ds_write_b128", x)
}

type DsWrite2B32 []asm.Gen

func (x DsWrite2B32) Append(to []byte) []byte {
	return inst(to, "ds_write2_b32", x)
}

type DsWrite2B64 []asm.Gen

func (x DsWrite2B64) Append(to []byte) []byte {
	return inst(to, "ds_write2_b64", x)
}

type DsWrite2st64B32 []asm.Gen

func (x DsWrite2st64B32) Append(to []byte) []byte {
	return inst(to, "ds_write2st64_b32", x)
}

type DsWrite2st64B64 []asm.Gen

func (x DsWrite2st64B64) Append(to []byte) []byte {
	return inst(to, "ds_write2st64_b64", x)
}

type DsReadB32 []asm.Gen

func (x DsReadB32) Append(to []byte) []byte {
	return inst(to, "ds_read_b32", x)
}

type DsReadB64 []asm.Gen

func (x DsReadB64) Append(to []byte) []byte {
	return inst(to, "ds_read_b64", x)
}

type DsReadB128 []asm.Gen

func (x DsReadB128) Append(to []byte) []byte {
	return inst(to, "ds_read_b128", x)
}

type SAndB64 []asm.Gen

func (x SAndB64) Append(to []byte) []byte {
	return inst(to, "s_and_b64", x)
}

type VAddcCoU32 []asm.Gen

func (x VAddcCoU32) Append(to []byte) []byte {
	return inst(to, "v_addc_co_u32", x)
}

type VCmpLeU32 []asm.Gen

func (x VCmpLeU32) Append(to []byte) []byte {
	return inst(to, "v_cmp_le_u32", x)
}

type VCmpNeI32 []asm.Gen

func (x VCmpNeI32) Append(to []byte) []byte {
	return inst(to, "v_cmp_ne_i32", x)
}

type VRcpF32 []asm.Gen

func (x VRcpF32) Append(to []byte) []byte {
	return inst(to, "v_rcp_f32", x)
}

type VReadfirstlaneB32 []asm.Gen

func (x VReadfirstlaneB32) Append(to []byte) []byte {
	return inst(to, "v_readfirstlane_b32", x)
}
